package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/adamancini/appimageupdate/internal/appimage"
	"github.com/adamancini/appimageupdate/internal/config"
	"github.com/adamancini/appimageupdate/internal/job"
	"github.com/adamancini/appimageupdate/internal/output"
	"github.com/adamancini/appimageupdate/internal/transfer"
	"github.com/adamancini/appimageupdate/internal/update"
)

// newExtractor builds the metadata extractor. Tests replace it.
var newExtractor = func(cfg *config.Config) (job.Extractor, error) {
	lister, err := appimage.NewSectionLister(cfg.SectionLister, cfg.ObjdumpPath)
	if err != nil {
		return nil, err
	}
	return appimage.NewExtractor(lister), nil
}

// loadConfig finds and loads the config file selected by the global flags.
func loadConfig() (*config.Config, error) {
	path, err := config.Find(configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newLogger creates the diagnostic logger. Flags take precedence over log_level.
func newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "appimageupdate",
	})

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.ErrorLevel
	}
	logger.SetLevel(level)

	return logger
}

func userAgent(cfg *config.Config) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return "appimageupdate/" + buildInfo.Version
}

// newResolver wires the provider endpoints from cfg. The GitHub token is only
// sent to the GitHub API.
func newResolver(cfg *config.Config, logger *log.Logger) *update.Resolver {
	ua := userAgent(cfg)
	fetcher := update.NewHTTPFetcher(cfg.Timeout(), update.WithUserAgent(ua))

	ghOpts := []update.FetcherOption{
		update.WithUserAgent(ua),
		update.WithHeader("Accept", "application/vnd.github+json"),
	}
	if token := cfg.Token(); token != "" {
		ghOpts = append(ghOpts, update.WithHeader("Authorization", "Bearer "+token))
	}

	return update.NewResolver(
		update.WithFetcher(fetcher),
		update.WithGitHubFetcher(update.NewHTTPFetcher(cfg.Timeout(), ghOpts...)),
		update.WithGitHubAPIURL(cfg.GitHubAPIURL),
		update.WithBintrayURLs(cfg.BintrayURL, cfg.BintrayDownloadURL),
		update.WithLogger(logger),
	)
}

func newTransferFactory(cfg *config.Config, logger *log.Logger) transfer.Factory {
	return transfer.NewHTTPFactory(
		transfer.WithKeepBackup(cfg.KeepBackup()),
		transfer.WithDownloader(transfer.NewHTTPDownloader(nil, userAgent(cfg))),
		transfer.WithLogger(logger),
	)
}

func newOutputWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
