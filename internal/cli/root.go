// Package cli wires the bt commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bt",
		Short: "Basalt manages stacked branches and keeps one review open per branch",
		Long: `Basalt manages stacked branches: linear chains of dependent branches that
are rebased together and submitted as one review per branch, each review
targeting the branch below it.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newRestackCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}
