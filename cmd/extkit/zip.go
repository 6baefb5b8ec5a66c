package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/extkit/cli/internal/config"
	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/project"
	"github.com/extkit/cli/internal/zip"
)

var zipOutFile string

var zipCmd = &cobra.Command{
	Use:   "zip",
	Short: "Archive the built extension for store upload",
	Long: `Archive the build output directory into a zip named after the built
extension: <name>-<version>.zip, placed next to the output directory.

Run 'extkit build' first; the archive is made from the output directory,
not from source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runZip()
	},
}

func registerZipFlags() {
	zipCmd.Flags().StringVar(&zipOutFile, "out", "", "archive path (defaults to <name>-<version>.zip next to the output directory)")
}

type archiveSummary struct {
	Path  string
	Files int
	Bytes int64
}

func runZip() error {
	projectDir := globalProjectDir
	if projectDir == "" {
		projectDir = "."
	}

	cfg, err := config.LoadDir(projectDir)
	if err != nil {
		return err
	}

	layout, err := project.Locate(projectDir, resolveOutputDir(cfg), out)
	if err != nil {
		return err
	}

	built := filepath.Join(layout.OutputDir, "manifest.json")
	doc, err := manifest.Load(built)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no built extension at %s: run 'extkit build' first", layout.OutputDir)
		}
		return err
	}

	archive, err := archiveOutput(layout, doc)
	if err != nil {
		return err
	}

	if globalJSON {
		return outputJSON(struct {
			Archive string `json:"archive"`
			Files   int    `json:"files"`
			Bytes   int64  `json:"bytes"`
		}{archive.Path, archive.Files, archive.Bytes})
	}

	out.Success("archived %s %s", doc.Name, doc.Version)
	out.Result([]output.KeyValue{
		{Key: "Archive", Value: archive.Path},
		{Key: "Files", Value: countLabel(archive.Files)},
		{Key: "Size", Value: formatBytes(archive.Bytes)},
	})
	return nil
}

// archiveOutput zips a built output directory under its manifest-derived
// name. An explicit --out path wins over the derived one.
func archiveOutput(layout *project.Layout, doc *manifest.Document) (*archiveSummary, error) {
	target := zipOutFile
	if target == "" {
		target = filepath.Join(filepath.Dir(layout.OutputDir), archiveName(doc.Name, doc.Version))
	}

	var path string
	var stats zip.Stats
	err := out.Spinner("archiving", func() error {
		var zipErr error
		path, stats, zipErr = zip.Directory(layout.OutputDir, target)
		return zipErr
	})
	if err != nil {
		return nil, err
	}
	return &archiveSummary{Path: path, Files: stats.Files, Bytes: stats.Bytes}, nil
}

// archiveName derives a store-uploadable archive name from extension
// metadata, keeping only filename-safe characters.
func archiveName(name, version string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r == ' ', r == '/', r == '\\':
			return '-'
		default:
			return -1
		}
	}, name)
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "extension"
	}
	if version != "" {
		base += "-" + version
	}
	return base + ".zip"
}
