package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	xfg "github.com/archmagece/xfg"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(xfg.VersionString())
	},
}
