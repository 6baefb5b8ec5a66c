// Package entry discovers bundler entry points from the extension manifest
// and from script tags in HTML pages under the source root.
package entry

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/project"
)

// Entry is one bundler entry point. Name is the source path relative to the
// source root with the extension stripped; it doubles as the output path
// under the build directory. Source is relative to the source root.
type Entry struct {
	Name   string
	Source string
}

// Map is an ordered name-to-source collection. Adding an existing name
// replaces the previous source in place (last discovery wins).
type Map struct {
	entries []Entry
	index   map[string]int
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Add records an entry. When the name is already present the previous
// source is replaced and returned with collision=true.
func (m *Map) Add(name, source string) (prev string, collision bool) {
	if i, ok := m.index[name]; ok {
		prev = m.entries[i].Source
		m.entries[i].Source = source
		return prev, prev != source
	}
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, Entry{Name: name, Source: source})
	return "", false
}

// Entries returns the entries in insertion order.
func (m *Map) Entries() []Entry {
	return m.entries
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// ContainsSource reports whether source is one of the map's entry sources.
func (m *Map) ContainsSource(source string) bool {
	for _, e := range m.entries {
		if e.Source == source {
			return true
		}
	}
	return false
}

// Entries groups the discovered entry points by the runtime context that
// loads them, plus every HTML file seen during the page scan (the asset
// pipeline materializes those).
type Entries struct {
	Background *Map
	Content    *Map
	Pages      *Map
	HTMLFiles  []string
}

// Merged combines all categories into one map for the compiler. Names are
// derived from source paths, so a name shared across categories refers to
// the same file.
func (e *Entries) Merged() *Map {
	merged := NewMap()
	for _, m := range []*Map{e.Background, e.Content, e.Pages} {
		for _, ent := range m.Entries() {
			merged.Add(ent.Name, ent.Source)
		}
	}
	return merged
}

// Total returns the number of distinct entry points.
func (e *Entries) Total() int {
	return e.Merged().Len()
}

// IsPageSource reports whether rel belongs to the page category: a scanned
// HTML file or a script referenced by one.
func (e *Entries) IsPageSource(rel string) bool {
	if e.Pages.ContainsSource(rel) {
		return true
	}
	for _, h := range e.HTMLFiles {
		if h == rel {
			return true
		}
	}
	return strings.HasSuffix(strings.ToLower(rel), ".html")
}

// Discover builds the entry maps for the project: the background service
// worker (or legacy background scripts), every content-script file, and
// every script referenced by an HTML page under the source root.
func Discover(layout *project.Layout, doc *manifest.Document, out *output.Writer) (*Entries, error) {
	ents := &Entries{
		Background: NewMap(),
		Content:    NewMap(),
		Pages:      NewMap(),
	}

	if bg := doc.Background; bg != nil {
		if bg.ServiceWorker != "" {
			addEntry(ents.Background, bg.ServiceWorker, out)
		}
		for _, s := range bg.Scripts {
			addEntry(ents.Background, s, out)
		}
	}

	for _, cs := range doc.ContentScripts {
		for _, s := range cs.JS {
			addEntry(ents.Content, s, out)
		}
	}

	htmlFiles, err := findHTMLFiles(layout)
	if err != nil {
		return nil, fmt.Errorf("scanning for html pages: %w", err)
	}
	ents.HTMLFiles = htmlFiles

	for _, htmlRel := range htmlFiles {
		scripts, err := scanScriptSources(layout.SourceRoot, htmlRel)
		if err != nil {
			out.Warning("skipping %s: %v", htmlRel, err)
			continue
		}
		for _, s := range scripts {
			addEntry(ents.Pages, s, out)
		}
	}

	return ents, nil
}

// addEntry normalizes rel, derives the entry name and records it, warning
// when a name collision replaces an earlier source.
func addEntry(m *Map, rel string, out *output.Writer) {
	rel = manifest.NormalizePath(rel)
	name := EntryName(rel)
	if prev, collided := m.Add(name, rel); collided {
		out.Warning("entry %q: %s replaces %s (same output name)", name, rel, prev)
	}
}

// EntryName derives the entry name from a source path relative to the
// source root: separators normalized, extension stripped.
func EntryName(rel string) string {
	rel = manifest.NormalizePath(rel)
	ext := path.Ext(rel)
	return strings.TrimSuffix(rel, ext)
}

// sortedCopy returns rels sorted, keeping discovery deterministic across
// the concurrent walker.
func sortedCopy(rels []string) []string {
	out := make([]string, len(rels))
	copy(out, rels)
	sort.Strings(out)
	return out
}
