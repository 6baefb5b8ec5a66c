// extkit - zero-configuration build tool for Manifest V3 browser extensions
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/project"
)

var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

// Global flags, shared by every command.
var (
	globalProjectDir string
	globalOutputDir  string
	globalVerbose    bool
	globalJSON       bool
)

var out *output.Writer

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extkit",
	Short: "Build Manifest V3 browser extensions without configuration",
	Long: `extkit builds Manifest V3 browser extensions straight from their
manifest.json: entry points are discovered from the manifest and from HTML
pages, compiled with an embedded bundler, and written next to the processed
manifest as a loadable unpacked extension.

No configuration file is required. Optional per-project settings live in
` + "`.extkit.json`" + ` at the project root.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if out == nil {
			out = output.New()
		}
		out.SetVerbose(globalVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalProjectDir, "project-dir", "", "project root directory (defaults to current directory)")
	rootCmd.PersistentFlags().StringVar(&globalOutputDir, "output-dir", "", "build output directory (defaults to "+project.DefaultOutputDir+")")
	rootCmd.PersistentFlags().BoolVar(&globalVerbose, "verbose", false, "log pipeline stages and watcher activity")
	rootCmd.PersistentFlags().BoolVar(&globalJSON, "json", false, "print machine-readable JSON summaries")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(zipCmd)
	rootCmd.AddCommand(buildAndZipCmd)

	registerDevFlags()
	registerBuildFlags()
	registerZipFlags()
}
