package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// checkReport describes an AppImage and where its updates come from.
type checkReport struct {
	Path              string `json:"path" yaml:"path"`
	LayoutVersion     int    `json:"layout_version" yaml:"layout_version"`
	UpdateInformation string `json:"update_information" yaml:"update_information"`
	Kind              string `json:"kind" yaml:"kind"`
	TransferURL       string `json:"transfer_url,omitempty" yaml:"transfer_url,omitempty"`
	Error             string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r checkReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Path:               %s\n", r.Path)
	fmt.Fprintf(&b, "Layout version:     %d\n", r.LayoutVersion)
	fmt.Fprintf(&b, "Update information: %s\n", orNone(r.UpdateInformation))
	fmt.Fprintf(&b, "Update type:        %s\n", r.Kind)
	if r.TransferURL != "" {
		fmt.Fprintf(&b, "Transfer URL:       %s\n", r.TransferURL)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:              %s\n", r.Error)
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Describe an AppImage's update information",
		Long: `Read the update information embedded in an AppImage and resolve it to
the zsync control file URL an update would use. Nothing is downloaded
besides what resolution needs.

Examples:
  appimageupdate check ./App-x86_64.AppImage
  appimageupdate check -o json ./App-x86_64.AppImage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0])
		},
	}
}

func runCheck(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	w, err := newOutputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	meta, err := extractor.Extract(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	report := checkReport{
		Path:              meta.Path,
		LayoutVersion:     int(meta.Version),
		UpdateInformation: meta.UpdateInformation,
	}

	source, resolveErr := newResolver(cfg, logger).Resolve(cmd.Context(), meta.UpdateInformation)
	report.Kind = source.Kind.String()
	if resolveErr != nil {
		report.Error = resolveErr.Error()
	} else {
		report.TransferURL = source.TransferURL
	}

	if err := w.Write(report); err != nil {
		return err
	}

	if resolveErr != nil {
		return fmt.Errorf("failed to resolve update information: %w", resolveErr)
	}
	return nil
}
