package main

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(c *cobra.Command, args []string) {
		out.Println("extkit %s", version)
		out.Info("commit: %s", commit)
		out.Info("built: %s", date)
	},
}
