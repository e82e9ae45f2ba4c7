package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks that every value is usable. All problems are reported at once.
func Validate(c *Config) error {
	var errs []string

	for field, value := range map[string]string{
		"github_api_url":       c.GitHubAPIURL,
		"bintray_url":          c.BintrayURL,
		"bintray_download_url": c.BintrayDownloadURL,
	} {
		if err := validateURL(field, value); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for field, value := range map[string]string{
		"http_timeout":  c.HTTPTimeout,
		"poll_interval": c.PollInterval,
	} {
		if err := validateDuration(field, value); err != nil {
			errs = append(errs, err.Error())
		}
	}

	switch c.SectionLister {
	case ListerAuto, ListerObjdump, ListerELF:
	default:
		errs = append(errs, ValidationError{
			Field:   "section_lister",
			Message: fmt.Sprintf("invalid value '%s' (must be auto, objdump or elf)", c.SectionLister),
		}.Error())
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("invalid level '%s'", c.LogLevel),
		}.Error())
	}

	if len(errs) > 0 {
		// Map iteration order is random; keep messages stable.
		slices.Sort(errs)
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid URL '%s'", value),
		}
	}
	return nil
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration '%s'", value),
		}
	}
	if d <= 0 {
		return ValidationError{
			Field:   field,
			Message: "must be positive",
		}
	}
	return nil
}
