package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/appimageupdate/internal/output"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the appimageupdate version, commit and build date.

Examples:
  appimageupdate version
  appimageupdate version -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newOutputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if w.Format() != output.FormatText {
				return w.Write(buildInfo)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "appimageupdate version %s (commit %s, built %s)\n",
				buildInfo.Version, buildInfo.Commit, buildInfo.Date)
			return err
		},
	}
}
