package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packhound/packhound"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of packhound",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("packhound version %s\n", strings.TrimSpace(packhound.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
