package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/extkit/cli/internal/build"
	"github.com/extkit/cli/internal/config"
	"github.com/extkit/cli/internal/env"
	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/output"
)

// Build flags: shared between "build" and "build-and-zip" so both commands
// drive the same pipeline with identical flag names.
var (
	buildMinify    bool
	buildSourcemap bool
	buildZip       bool
	buildYes       bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the extension for release",
	Long: `Build the extension in production mode.

The output directory is cleared first, entries compile minified without
source maps, and the processed manifest carries no development markers.
The result is ready to load unpacked or to package for a web store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild()
	},
}

var buildAndZipCmd = &cobra.Command{
	Use:   "build-and-zip",
	Short: "Build the extension and archive it in one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		buildZip = true
		return runBuild()
	},
}

func registerBuildFlags() {
	for _, c := range []*cobra.Command{buildCmd, buildAndZipCmd} {
		c.Flags().BoolVar(&buildMinify, "minify", true, "minify compiled scripts and copied stylesheets")
		c.Flags().BoolVar(&buildSourcemap, "sourcemap", false, "emit linked source maps next to compiled entries")
		c.Flags().BoolVar(&buildYes, "yes", false, "skip confirmation prompts")
	}
	buildCmd.Flags().BoolVar(&buildZip, "zip", false, "archive the output directory after building")
}

func runBuild() error {
	result, err := runProductionBuild()
	if err != nil {
		return err
	}

	var archive *archiveSummary
	if buildZip {
		archive, err = archiveOutput(result.Layout, result.Manifest)
		if err != nil {
			return err
		}
	}

	if globalJSON {
		summary := struct {
			Name      string `json:"name"`
			Version   string `json:"version"`
			OutputDir string `json:"output_dir"`
			Entries   int    `json:"entries"`
			Assets    int    `json:"assets"`
			Duration  string `json:"duration"`
			Archive   string `json:"archive,omitempty"`
			Files     int    `json:"archive_files,omitempty"`
			Bytes     int64  `json:"archive_bytes,omitempty"`
		}{
			Name:      result.Manifest.Name,
			Version:   result.Manifest.Version,
			OutputDir: result.Layout.OutputDir,
			Entries:   result.Entries.Total(),
			Assets:    result.AssetCount,
			Duration:  result.Duration.Round(time.Millisecond).String(),
		}
		if archive != nil {
			summary.Archive = archive.Path
			summary.Files = archive.Files
			summary.Bytes = archive.Bytes
		}
		return outputJSON(summary)
	}

	out.Success("%s %s built in %s", result.Manifest.Name, result.Manifest.Version,
		result.Duration.Round(time.Millisecond))
	out.Result([]output.KeyValue{
		{Key: "Output", Value: result.Layout.OutputDir},
		{Key: "Entries", Value: countLabel(result.Entries.Total())},
		{Key: "Assets", Value: countLabel(result.AssetCount)},
	})
	if archive != nil {
		out.Result([]output.KeyValue{
			{Key: "Archive", Value: archive.Path},
			{Key: "Files", Value: countLabel(archive.Files)},
			{Key: "Size", Value: formatBytes(archive.Bytes)},
		})
	}
	return nil
}

func runProductionBuild() (*build.Result, error) {
	projectDir := globalProjectDir
	if projectDir == "" {
		projectDir = "."
	}

	cfg, err := config.LoadDir(projectDir)
	if err != nil {
		return nil, err
	}

	vars, err := env.Load(projectDir, string(manifest.ModeProduction))
	if err != nil {
		return nil, err
	}

	driver := build.New(build.EsbuildCompiler{}, out)
	opts := &build.Options{
		ProjectDir: projectDir,
		OutputDir:  resolveOutputDir(cfg),
		Mode:       manifest.ModeProduction,
		Minify:     buildMinify,
		Sourcemap:  buildSourcemap,
		Defines:    env.PublicDefines(vars),
		AssumeYes:  buildYes,
	}

	out.Step("building for production")
	return driver.Run(opts)
}
