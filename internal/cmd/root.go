// Package cmd implements the appimageupdate command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/appimageupdate/internal/output"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
)

// buildInfo is set by Execute and reported by the version command.
var buildInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	buildInfo.Version = version
	buildInfo.Commit = commit
	buildInfo.Date = date

	rootCmd := &cobra.Command{
		Use:   "appimageupdate",
		Short: "Update AppImages in place using their embedded update information",
		Long: `appimageupdate reads the update information embedded in an AppImage,
resolves it to a zsync control file and replaces the file with the latest release.

Supported update information:
  zsync|<url>
  gh-releases-zsync|<user>|<repo>|<tag>|<filename pattern>
  bintray-zsync|<user>|<repo>|<package>|<filename>`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Add subcommands
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.Formats, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}
