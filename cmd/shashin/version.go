package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Shashin/common/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}
