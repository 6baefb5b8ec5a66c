// Package assets discovers the static files a build must carry over
// (stylesheets, icons, locales, HTML pages, web-accessible resources) and
// materializes them into the output directory. Asset problems degrade to
// warnings; a missing icon never fails a build.
package assets

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/extkit/cli/internal/entry"
	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/project"
)

// Kind describes how an asset is materialized.
type Kind int

const (
	// KindFile is copied verbatim.
	KindFile Kind = iota
	// KindCSS passes through the configured stylesheet transform.
	KindCSS
	// KindHTML is re-rendered with script references rewritten.
	KindHTML
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindHTML:
		return "html"
	default:
		return "file"
	}
}

// Asset is one file scheduled for materialization, keyed by its slash path
// relative to the source root.
type Asset struct {
	Rel  string
	Kind Kind
}

// Transform rewrites stylesheet contents before they land in the output
// directory. A nil Transform copies stylesheets verbatim.
type Transform func(rel string, css []byte) ([]byte, error)

// Discover computes the asset list for a build from the loaded manifest and
// the page scan. Glob patterns in web_accessible_resources expand against
// the source root here; patterns matching nothing produce a warning.
func Discover(layout *project.Layout, doc *manifest.Document, ents *entry.Entries, out *output.Writer) []Asset {
	var assets []Asset
	seen := make(map[string]bool)

	add := func(rel string, kind Kind) {
		rel = manifest.NormalizePath(rel)
		if rel == "" || seen[rel] {
			return
		}
		seen[rel] = true
		assets = append(assets, Asset{Rel: rel, Kind: kind})
	}

	for _, cs := range doc.ContentScripts {
		for _, css := range cs.CSS {
			add(css, KindCSS)
		}
	}

	for _, p := range doc.Icons {
		add(p, KindFile)
	}
	for _, action := range []*manifest.Action{doc.Action, doc.BrowserAction, doc.PageAction} {
		if action == nil {
			continue
		}
		for _, p := range action.DefaultIcon.Paths() {
			add(p, KindFile)
		}
	}

	for _, rel := range localeFiles(layout.SourceRoot) {
		add(rel, KindFile)
	}

	for _, rel := range ents.HTMLFiles {
		add(rel, KindHTML)
	}

	merged := ents.Merged()
	for _, rel := range expandResources(layout, doc.WebAccessibleResources, out) {
		switch {
		case manifest.IsSourceScript(rel):
			// compiled by the bundler when it is an entry point
			if !merged.ContainsSource(rel) {
				out.Warning("web accessible resource %s is not referenced by any entry point; nothing will compile it", rel)
			}
		case strings.HasSuffix(strings.ToLower(rel), ".css"):
			add(rel, KindCSS)
		case strings.HasSuffix(strings.ToLower(rel), ".html"):
			add(rel, KindHTML)
		default:
			add(rel, KindFile)
		}
	}

	return assets
}

// Materialize writes every asset into the output directory, preserving
// relative paths. Returns the number of files written. Missing sources and
// failed transforms degrade to warnings.
func Materialize(assets []Asset, layout *project.Layout, transform Transform, out *output.Writer) (int, error) {
	written := 0
	for _, a := range assets {
		src := filepath.Join(layout.SourceRoot, filepath.FromSlash(a.Rel))
		if _, err := os.Stat(src); err != nil {
			out.Warning("asset not found, skipping: %s", a.Rel)
			continue
		}

		dest := filepath.Join(layout.OutputDir, filepath.FromSlash(a.Rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, fmt.Errorf("creating asset directory: %w", err)
		}

		var err error
		switch a.Kind {
		case KindCSS:
			err = writeCSS(src, dest, a.Rel, transform, out)
		case KindHTML:
			err = writeHTML(src, dest)
		default:
			err = copyFile(src, dest)
		}
		if err != nil {
			out.Warning("asset %s: %v", a.Rel, err)
			continue
		}
		written++
	}
	return written, nil
}

// writeCSS runs the stylesheet transform, falling back to a verbatim copy
// when the transform fails or none is configured.
func writeCSS(src, dest, rel string, transform Transform, out *output.Writer) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	if transform != nil {
		transformed, err := transform(rel, data)
		if err != nil {
			out.Warning("stylesheet transform failed for %s, copying verbatim: %v", rel, err)
		} else {
			data = transformed
		}
	}

	return os.WriteFile(dest, data, 0o644)
}

// writeHTML re-renders an HTML page with local script references pointed at
// their compiled .js locations.
func writeHTML(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	doc, err := html.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing html: %w", err)
	}

	rewriteScriptSrcs(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return os.WriteFile(dest, buf.Bytes(), 0o644)
}

// rewriteScriptSrcs maps every local script src with a source extension to
// its .js output name.
func rewriteScriptSrcs(n *html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for i, a := range n.Attr {
			if a.Key != "src" {
				continue
			}
			src := strings.TrimSpace(a.Val)
			if src == "" || isRemoteURL(src) {
				continue
			}
			n.Attr[i].Val = manifest.RewriteScriptPath(src)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteScriptSrcs(c)
	}
}

// isRemoteURL reports whether src points outside the project.
func isRemoteURL(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// localeFiles returns every file under _locales as a source-root-relative
// slash path. Extensions carrying a default_locale ship message catalogs.
func localeFiles(sourceRoot string) []string {
	localesDir := filepath.Join(sourceRoot, "_locales")
	if _, err := os.Stat(localesDir); err != nil {
		return nil
	}

	var files []string
	filepath.Walk(localesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files
}

// expandResources expands web_accessible_resources declarations against the
// source root. Literal paths come back as-is when they exist; glob patterns
// expand to every matching file. Directories never match: a pattern like
// assets/** names the files underneath, and Materialize copies files.
func expandResources(layout *project.Layout, war *manifest.WebAccessibleResources, out *output.Writer) []string {
	if war == nil {
		return nil
	}

	fsys := os.DirFS(layout.SourceRoot)
	outBase := filepath.Base(layout.OutputDir)

	var expanded []string
	for _, pattern := range war.Resources() {
		pattern = manifest.NormalizePath(pattern)
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			out.Warning("invalid web accessible resource pattern %q: %v", pattern, err)
			continue
		}
		if len(matches) == 0 {
			out.Warning("web accessible resource matches nothing: %s", pattern)
			continue
		}
		for _, m := range matches {
			if strings.HasPrefix(m, "node_modules/") || strings.HasPrefix(m, outBase+"/") {
				continue
			}
			expanded = append(expanded, m)
		}
	}
	return lo.Uniq(expanded)
}

// copyFile copies src to dest preserving the source mode.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Chmod(dest, info.Mode())
}
