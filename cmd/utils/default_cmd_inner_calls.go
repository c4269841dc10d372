package utils

import "github.com/spf13/cobra"

// PropagatePersistentPreRun runs the PersistentPreRun of the parent command, so the options of every ancestor are
// loaded before a subcommand runs.
func PropagatePersistentPreRun(cmd *cobra.Command, args []string) {
	if parent := cmd.Parent(); parent != nil && parent.PersistentPreRun != nil {
		parent.PersistentPreRun(parent, args)
	}
}

// CallHelpCommand prints the help of commands that only group subcommands.
func CallHelpCommand(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}
