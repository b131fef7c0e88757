package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the top-level "irsim" command with serve and
// validate-seed wired as subcommands, for a single combined binary.
// The dedicated cmd/irsim-serve and cmd/irsim-validate-seed binaries
// invoke their specific subcommand's Command directly instead.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "irsim",
		Short: "Episodic incident-response simulator",
		Long: `irsim hosts a scripted cyber-incident episode: a defender agent
investigates evidence, takes containment actions, and submits a report while
an attacker policy progresses a kill-chain gated by that containment.`,
	}
	root.AddCommand(NewServeCommand(), NewValidateSeedCommand())
	return root
}
