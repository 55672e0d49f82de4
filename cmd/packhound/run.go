package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packhound/packhound/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run <package-dir>",
	Short: "Analyze a package directory and write the verdict report",
	Long: `Collects the package's entry-point files (setup.py and, if present,
__init__.py plus the local modules they import), runs the full investigation
and writes report.txt and report.json into the package directory.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		lowMemory, _ := cmd.Flags().GetBool("low-memory")
		noBanner, _ := cmd.Flags().GetBool("no-banner")

		err := cli.RunAnalysis(cli.RunOptions{
			PkgDir:     args[0],
			ConfigPath: configPath,
			Debug:      debug,
			LowMemory:  lowMemory,
			NoBanner:   noBanner,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("low-memory", false, "Run all roles on the supervisor endpoint to reduce memory usage")
	runCmd.Flags().Bool("no-banner", false, "Suppress the startup banner")
}
