package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caesay/osu/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.ClientVersion())
	},
}
