// Package config handles updater configuration parsing and location resolution.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "APPIMAGEUPDATE_CONFIG"

// Section lister kinds.
const (
	ListerAuto    = "auto"
	ListerObjdump = "objdump"
	ListerELF     = "elf"
)

// Default values used when a key is absent.
const (
	DefaultGitHubAPIURL       = "https://api.github.com"
	DefaultBintrayURL         = "https://bintray.com"
	DefaultBintrayDownloadURL = "https://dl.bintray.com"
	DefaultHTTPTimeout        = "30s"
	DefaultPollInterval       = "100ms"
	DefaultLogLevel           = "info"
)

// Config is the parsed updater configuration.
type Config struct {
	GitHubAPIURL       string `yaml:"github_api_url" toml:"github_api_url" json:"github_api_url"`
	GitHubToken        string `yaml:"github_token,omitempty" toml:"github_token,omitempty" json:"github_token,omitempty"`
	BintrayURL         string `yaml:"bintray_url" toml:"bintray_url" json:"bintray_url"`
	BintrayDownloadURL string `yaml:"bintray_download_url" toml:"bintray_download_url" json:"bintray_download_url"`
	HTTPTimeout        string `yaml:"http_timeout" toml:"http_timeout" json:"http_timeout"`
	UserAgent          string `yaml:"user_agent,omitempty" toml:"user_agent,omitempty" json:"user_agent,omitempty"`
	SectionLister      string `yaml:"section_lister" toml:"section_lister" json:"section_lister"`
	ObjdumpPath        string `yaml:"objdump_path,omitempty" toml:"objdump_path,omitempty" json:"objdump_path,omitempty"`
	KeepOld            *bool  `yaml:"keep_old,omitempty" toml:"keep_old,omitempty" json:"keep_old,omitempty"`
	LogLevel           string `yaml:"log_level" toml:"log_level" json:"log_level"`
	PollInterval       string `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
}

// Default returns a config with every key set to its default.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.GitHubAPIURL == "" {
		c.GitHubAPIURL = DefaultGitHubAPIURL
	}
	if c.BintrayURL == "" {
		c.BintrayURL = DefaultBintrayURL
	}
	if c.BintrayDownloadURL == "" {
		c.BintrayDownloadURL = DefaultBintrayDownloadURL
	}
	if c.HTTPTimeout == "" {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.SectionLister == "" {
		c.SectionLister = ListerAuto
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.PollInterval == "" {
		c.PollInterval = DefaultPollInterval
	}
	if c.KeepOld == nil {
		keep := true
		c.KeepOld = &keep
	}
}

// KeepBackup reports whether the previous file is kept after an update.
func (c *Config) KeepBackup() bool {
	return c.KeepOld == nil || *c.KeepOld
}

// Timeout returns the parsed HTTP timeout. Validate guarantees it parses.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Interval returns the parsed poll interval. Validate guarantees it parses.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// Token returns the configured GitHub token, falling back to GITHUB_TOKEN.
func (c *Config) Token() string {
	if c.GitHubToken != "" {
		return c.GitHubToken
	}
	return os.Getenv("GITHUB_TOKEN")
}

// Find searches for a config file in the standard locations.
// It returns "" without error when no file exists anywhere.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	extensions := []string{".yaml", ".yml", ".toml", ".json"}

	var candidates []string
	for _, ext := range extensions {
		candidates = append(candidates, filepath.Join(xdgConfig, "appimageupdate", "config"+ext))
	}
	for _, ext := range extensions {
		candidates = append(candidates, filepath.Join(home, ".appimageupdate"+ext))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", nil
}

// Load reads and parses a config file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
