package cli

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	// Printing the version needs no settings.
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("kbchat version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
