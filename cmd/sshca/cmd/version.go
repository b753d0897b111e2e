package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmelo/sshca/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "sshca version %s\n", version.Version)
		return nil
	},
}
