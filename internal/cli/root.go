package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/susu3304/warikan/internal/buildinfo"
)

// NewRootCommand creates the warikanctl command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "warikanctl",
		Short:   "Settle shared expenses offline",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newSettleCommand())
	rootCmd.AddCommand(newSplitCommand())

	return rootCmd
}
