// Package project resolves the directory layout of an extension project:
// the project root, the manifest location, the source root all
// manifest-relative paths resolve against, and the build output directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extkit/cli/internal/output"
)

// DefaultOutputDir is the build output directory relative to the project
// root when none is configured.
const DefaultOutputDir = "dist"

// manifestCandidates are checked in order; the list is ordered shallowest
// first, which doubles as the non-interactive tie-break.
var manifestCandidates = []string{
	"manifest.json",
	filepath.Join("src", "manifest.json"),
	filepath.Join("public", "manifest.json"),
}

// Layout holds the resolved directory layout of an extension project.
type Layout struct {
	// ProjectDir is the absolute project root (where package.json lives).
	ProjectDir string
	// ManifestPath is the absolute path of the chosen manifest.json.
	ManifestPath string
	// SourceRoot is the directory containing the manifest. Entry names and
	// manifest-relative paths resolve against it.
	SourceRoot string
	// OutputDir is the absolute build output directory.
	OutputDir string
}

// Locate resolves the project layout starting from projectDir. outputDir
// overrides the default output directory; relative values resolve against
// the project root. With more than one manifest candidate present, an
// interactive session prompts, otherwise the shallowest wins with a warning.
func Locate(projectDir, outputDir string, out *output.Writer) (*Layout, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}

	if _, err := os.Stat(absDir); err != nil {
		return nil, fmt.Errorf("project directory does not exist: %w", err)
	}

	manifestPath, err := findManifest(absDir, out)
	if err != nil {
		return nil, err
	}

	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(absDir, outputDir)
	}
	outputDir = filepath.Clean(outputDir)

	sourceRoot := filepath.Dir(manifestPath)
	if outputDir == absDir {
		return nil, fmt.Errorf("output directory must not be the project root itself")
	}
	if outputDir == sourceRoot || isSubpath(outputDir, sourceRoot) {
		return nil, fmt.Errorf("output directory %s would contain the extension sources; pick a sibling directory", outputDir)
	}

	return &Layout{
		ProjectDir:   absDir,
		ManifestPath: manifestPath,
		SourceRoot:   sourceRoot,
		OutputDir:    outputDir,
	}, nil
}

// findManifest checks the known manifest locations under the project root.
func findManifest(projectDir string, out *output.Writer) (string, error) {
	var found []string
	for _, rel := range manifestCandidates {
		path := filepath.Join(projectDir, rel)
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no manifest.json found in %s (searched: %s): is this a browser extension project?",
			projectDir, strings.Join(manifestCandidates, ", "))
	case 1:
		return found[0], nil
	}

	if out.IsInteractive() {
		opts := make([]output.SelectOption, len(found))
		for i, path := range found {
			rel, _ := filepath.Rel(projectDir, path)
			opts[i] = output.SelectOption{Label: rel, Value: path}
		}
		chosen, err := out.Select("Multiple manifests found, select one", opts)
		if err != nil {
			return "", fmt.Errorf("selecting manifest: %w", err)
		}
		return chosen, nil
	}

	rels := make([]string, 0, len(found)-1)
	for _, path := range found[1:] {
		rel, _ := filepath.Rel(projectDir, path)
		rels = append(rels, rel)
	}
	chosenRel, _ := filepath.Rel(projectDir, found[0])
	out.Warning("multiple manifests found, using %s (ignored: %s)", chosenRel, strings.Join(rels, ", "))
	return found[0], nil
}

// isSubpath reports whether child is strictly inside parent.
func isSubpath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
