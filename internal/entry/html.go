package entry

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/boyter/gocodewalker"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/project"
)

// walkExcludedDirs are never descended into during the page scan.
var walkExcludedDirs = []string{
	"node_modules",
	".git",
}

// findHTMLFiles walks the source root and returns every .html file as a
// sorted slash path relative to the source root. The build output directory
// and dependency directories are excluded.
func findHTMLFiles(layout *project.Layout) ([]string, error) {
	fileQueue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(layout.SourceRoot, fileQueue)
	walker.AllowListExtensions = []string{"html", "htm"}
	walker.ExcludeDirectory = append(walker.ExcludeDirectory, walkExcludedDirs...)
	walker.ExcludeDirectory = append(walker.ExcludeDirectory, filepath.Base(layout.OutputDir))

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	var files []string
	for f := range fileQueue {
		rel, err := filepath.Rel(layout.SourceRoot, f.Location)
		if err != nil {
			continue
		}
		files = append(files, filepath.ToSlash(rel))
	}

	if err := <-errChan; err != nil {
		return nil, err
	}
	return sortedCopy(files), nil
}

// scanScriptSources parses one HTML file and returns the local script
// sources it references, as slash paths relative to the source root.
// Absolute and protocol-relative URLs are skipped.
func scanScriptSources(sourceRoot, htmlRel string) ([]string, error) {
	f, err := os.Open(filepath.Join(sourceRoot, filepath.FromSlash(htmlRel)))
	if err != nil {
		return nil, fmt.Errorf("opening: %w", err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var sources []string
	collectScriptNodes(doc, func(src string) {
		if isRemoteURL(src) {
			return
		}
		resolved := resolveAgainstHTML(htmlRel, src)
		sources = append(sources, resolved)
	})
	return sources, nil
}

// collectScriptNodes walks the node tree and calls fn with every non-empty
// script src attribute.
func collectScriptNodes(n *html.Node, fn func(src string)) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, a := range n.Attr {
			if a.Key == "src" && strings.TrimSpace(a.Val) != "" {
				fn(strings.TrimSpace(a.Val))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectScriptNodes(c, fn)
	}
}

// isRemoteURL reports whether src points outside the project.
func isRemoteURL(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// resolveAgainstHTML resolves a script src against the directory of the
// HTML file that references it, yielding a source-root-relative slash path.
func resolveAgainstHTML(htmlRel, src string) string {
	src = manifest.NormalizePath(src)
	if strings.HasPrefix(src, "/") {
		// root-relative srcs resolve against the source root
		return strings.TrimPrefix(src, "/")
	}
	return path.Clean(path.Join(path.Dir(htmlRel), src))
}
