package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/balloonpipe/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, commit, date := version.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "balloonpipe version %s\n", v)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
