package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X chatdump/cmd/chatdump/cmd.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chatdump version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chatdump %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
