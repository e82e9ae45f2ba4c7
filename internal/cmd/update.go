package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/appimageupdate/internal/interactive"
	"github.com/adamancini/appimageupdate/internal/job"
	"github.com/adamancini/appimageupdate/internal/output"
)

// stdinIsTerminal decides whether update asks for confirmation. Tests replace it.
var stdinIsTerminal = interactive.IsTerminal

const progressBarWidth = 40

// updateResult is written for json and yaml output.
type updateResult struct {
	Path  string `json:"path" yaml:"path"`
	State string `json:"state" yaml:"state"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newUpdateCmd() *cobra.Command {
	var (
		yes          bool
		removeOld    bool
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "update <path>",
		Short: "Update an AppImage in place",
		Long: `Update an AppImage to the latest release described by its embedded
update information. The previous version is kept next to the file with a
.zs-old suffix unless --remove-old is given or keep_old is false.

Examples:
  appimageupdate update ./App-x86_64.AppImage
  appimageupdate update --yes --remove-old ./App-x86_64.AppImage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, args[0], yes, removeOld, pollInterval)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVarP(&removeOld, "remove-old", "r", false, "Remove the previous version after a successful update")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "How often to poll for progress (default from config)")

	return cmd
}

func runUpdate(cmd *cobra.Command, path string, yes, removeOld bool, pollInterval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if removeOld {
		keep := false
		cfg.KeepOld = &keep
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	w, err := newOutputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	if !yes && stdinIsTerminal() {
		meta, err := extractor.Extract(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		p := interactive.NewPrompterWithIO(cmd.InOrStdin(), out)
		if !p.ConfirmUpdate(path, meta.UpdateInformation) {
			_, _ = fmt.Fprintln(out, "Update cancelled")
			return nil
		}
	}

	j, err := job.New(path,
		job.WithExtractor(extractor),
		job.WithResolver(newResolver(cfg, logger)),
		job.WithTransferFactory(newTransferFactory(cfg, logger)),
		job.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if err := j.Start(); err != nil {
		return err
	}

	interval := pollInterval
	if interval <= 0 {
		interval = cfg.Interval()
	}

	text := w.Format() == output.FormatText && !quiet
	watchJob(j, out, interval, text, text && isTerminal(out))

	// Releases the transfer client.
	_, _ = j.Progress()

	if w.Format() != output.FormatText {
		result := updateResult{Path: j.Path(), State: j.State().String()}
		if j.Err() != nil {
			result.Error = j.Err().Error()
		}
		if err := w.Write(result); err != nil {
			return err
		}
	} else if !j.HasError() && !quiet {
		_, _ = fmt.Fprintln(out, "Update successful")
	}

	if j.HasError() {
		return fmt.Errorf("update of %s failed: %w", path, j.Err())
	}
	return nil
}

// watchJob polls j until it is done, printing status messages and, on a
// terminal, a progress bar.
func watchJob(j *job.Job, out io.Writer, interval time.Duration, messages, bar bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	drain := func() {
		for {
			msg, ok := j.NextStatusMessage()
			if !ok {
				return
			}
			if !messages {
				continue
			}
			if bar {
				_, _ = fmt.Fprint(out, "\r\x1b[K")
			}
			_, _ = fmt.Fprintln(out, msg)
		}
	}

	for !j.IsDone() {
		drain()
		if bar {
			if p, ok := j.Progress(); ok {
				_, _ = fmt.Fprintf(out, "\r%s", output.ProgressBar(p, progressBarWidth))
			}
		}
		<-ticker.C
	}

	drain()
	if bar {
		_, _ = fmt.Fprintf(out, "\r\x1b[K")
	}
}
