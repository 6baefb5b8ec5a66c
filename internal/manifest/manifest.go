// Package manifest loads, rewrites and saves extension manifests. The
// document schema is typed: shape differences between manifest versions
// (background worker vs. scripts, grouped vs. flat web-accessible resources,
// string vs. map icon declarations) are resolved once at load time into
// tagged variants. Keys the schema does not model pass through saves
// untouched.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
)

// DevTimestampKey is the manifest key carrying the development rebuild
// timestamp. Polling reload clients compare it across rebuilds.
const DevTimestampKey = "__dev_timestamp"

// sourceScriptExts are the authoring extensions the bundler compiles to .js.
var sourceScriptExts = map[string]bool{
	".ts":  true,
	".tsx": true,
	".mts": true,
	".cts": true,
	".jsx": true,
	".mjs": true,
	".cjs": true,
}

// Document is an extension manifest with the shape variants resolved.
type Document struct {
	ManifestVersion int
	Name            string
	Version         string
	Description     string
	DefaultLocale   string

	Background     *Background
	ContentScripts []ContentScript

	Action        *Action
	BrowserAction *Action
	PageAction    *Action

	OptionsPage  string
	OptionsUI    *OptionsUI
	DevtoolsPage string

	Icons                  map[string]string
	WebAccessibleResources *WebAccessibleResources

	// DevTimestamp is the development rebuild marker; zero means absent.
	DevTimestamp int64

	// rest holds every top-level key the schema does not model, re-emitted
	// verbatim on save.
	rest map[string]json.RawMessage
}

// Background covers both background declarations: a service worker
// (manifest v3) or a script list / page (legacy).
type Background struct {
	ServiceWorker string   `json:"service_worker,omitempty"`
	Type          string   `json:"type,omitempty"`
	Scripts       []string `json:"scripts,omitempty"`
	Page          string   `json:"page,omitempty"`
	Persistent    *bool    `json:"persistent,omitempty"`
}

// ContentScript is one content_scripts block.
type ContentScript struct {
	Matches         []string `json:"matches,omitempty"`
	ExcludeMatches  []string `json:"exclude_matches,omitempty"`
	JS              []string `json:"js,omitempty"`
	CSS             []string `json:"css,omitempty"`
	RunAt           string   `json:"run_at,omitempty"`
	AllFrames       *bool    `json:"all_frames,omitempty"`
	MatchAboutBlank *bool    `json:"match_about_blank,omitempty"`
	World           string   `json:"world,omitempty"`
}

// Action covers action, browser_action and page_action blocks.
type Action struct {
	DefaultPopup string   `json:"default_popup,omitempty"`
	DefaultTitle string   `json:"default_title,omitempty"`
	DefaultIcon  *IconSet `json:"default_icon,omitempty"`
}

// OptionsUI is the options_ui block.
type OptionsUI struct {
	Page      string `json:"page,omitempty"`
	OpenInTab *bool  `json:"open_in_tab,omitempty"`
}

// IconSet is a default_icon declaration, which manifests write either as a
// single path or as a size-to-path map. Exactly one side is set.
type IconSet struct {
	Single string
	Sizes  map[string]string
}

// UnmarshalJSON resolves the string-or-map variant.
func (s *IconSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(data, &s.Single)
	}
	return json.Unmarshal(data, &s.Sizes)
}

// MarshalJSON emits the variant the manifest declared.
func (s IconSet) MarshalJSON() ([]byte, error) {
	if s.Single != "" {
		return json.Marshal(s.Single)
	}
	return json.Marshal(s.Sizes)
}

// Paths returns every icon path in the set.
func (s *IconSet) Paths() []string {
	if s == nil {
		return nil
	}
	if s.Single != "" {
		return []string{s.Single}
	}
	paths := make([]string, 0, len(s.Sizes))
	for _, p := range s.Sizes {
		paths = append(paths, p)
	}
	return paths
}

// WebAccessibleResources is the web_accessible_resources declaration:
// a flat path list (legacy) or match-scoped groups (manifest v3). Exactly
// one side is set; an empty declaration keeps the legacy side non-nil so
// saves round-trip the empty array.
type WebAccessibleResources struct {
	Legacy []string
	Groups []WARGroup
}

// WARGroup is one grouped web_accessible_resources entry.
type WARGroup struct {
	Resources     []string `json:"resources,omitempty"`
	Matches       []string `json:"matches,omitempty"`
	ExtensionIDs  []string `json:"extension_ids,omitempty"`
	UseDynamicURL *bool    `json:"use_dynamic_url,omitempty"`
}

// UnmarshalJSON resolves the flat-or-grouped variant by inspecting the
// first element.
func (w *WebAccessibleResources) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	if len(elems) == 0 {
		w.Legacy = []string{}
		return nil
	}
	first := bytes.TrimSpace(elems[0])
	if len(first) > 0 && first[0] == '"' {
		return json.Unmarshal(data, &w.Legacy)
	}
	return json.Unmarshal(data, &w.Groups)
}

// MarshalJSON emits the variant the manifest declared.
func (w WebAccessibleResources) MarshalJSON() ([]byte, error) {
	if w.Legacy != nil {
		return json.Marshal(w.Legacy)
	}
	return json.Marshal(w.Groups)
}

// Resources returns every declared resource path or pattern.
func (w *WebAccessibleResources) Resources() []string {
	if w == nil {
		return nil
	}
	if w.Legacy != nil {
		return w.Legacy
	}
	var all []string
	for _, g := range w.Groups {
		all = append(all, g.Resources...)
	}
	return all
}

// rewriteResources applies fn to every resource entry in place.
func (w *WebAccessibleResources) rewriteResources(fn func(string) string) {
	if w == nil {
		return
	}
	for i, r := range w.Legacy {
		w.Legacy[i] = fn(r)
	}
	for gi := range w.Groups {
		for i, r := range w.Groups[gi].Resources {
			w.Groups[gi].Resources[i] = fn(r)
		}
	}
}

// Load reads and decodes the manifest at path.
func Load(manifestPath string) (*Document, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", manifestPath, err)
	}
	return &doc, nil
}

// Save writes the document as indented JSON.
func (d *Document) Save(manifestPath string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// UnmarshalJSON decodes the known keys into typed fields and retains the
// rest raw.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(key string, v interface{}) error {
		msg, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if err := json.Unmarshal(msg, v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		return nil
	}

	fields := []struct {
		key string
		dst interface{}
	}{
		{"manifest_version", &d.ManifestVersion},
		{"name", &d.Name},
		{"version", &d.Version},
		{"description", &d.Description},
		{"default_locale", &d.DefaultLocale},
		{"background", &d.Background},
		{"content_scripts", &d.ContentScripts},
		{"action", &d.Action},
		{"browser_action", &d.BrowserAction},
		{"page_action", &d.PageAction},
		{"options_page", &d.OptionsPage},
		{"options_ui", &d.OptionsUI},
		{"devtools_page", &d.DevtoolsPage},
		{"icons", &d.Icons},
		{"web_accessible_resources", &d.WebAccessibleResources},
		{DevTimestampKey, &d.DevTimestamp},
	}
	for _, f := range fields {
		if err := take(f.key, f.dst); err != nil {
			return err
		}
	}

	d.rest = raw
	return nil
}

// MarshalJSON re-assembles typed fields and retained raw keys.
func (d Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(d.rest)+16)
	for k, v := range d.rest {
		m[k] = v
	}

	var firstErr error
	put := func(key string, v interface{}) {
		data, err := json.Marshal(v)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("key %q: %w", key, err)
			return
		}
		m[key] = data
	}

	if d.ManifestVersion != 0 {
		put("manifest_version", d.ManifestVersion)
	}
	if d.Name != "" {
		put("name", d.Name)
	}
	if d.Version != "" {
		put("version", d.Version)
	}
	if d.Description != "" {
		put("description", d.Description)
	}
	if d.DefaultLocale != "" {
		put("default_locale", d.DefaultLocale)
	}
	if d.Background != nil {
		put("background", d.Background)
	}
	if len(d.ContentScripts) > 0 {
		put("content_scripts", d.ContentScripts)
	}
	if d.Action != nil {
		put("action", d.Action)
	}
	if d.BrowserAction != nil {
		put("browser_action", d.BrowserAction)
	}
	if d.PageAction != nil {
		put("page_action", d.PageAction)
	}
	if d.OptionsPage != "" {
		put("options_page", d.OptionsPage)
	}
	if d.OptionsUI != nil {
		put("options_ui", d.OptionsUI)
	}
	if d.DevtoolsPage != "" {
		put("devtools_page", d.DevtoolsPage)
	}
	if len(d.Icons) > 0 {
		put("icons", d.Icons)
	}
	if d.WebAccessibleResources != nil {
		put("web_accessible_resources", d.WebAccessibleResources)
	}
	if d.DevTimestamp != 0 {
		put(DevTimestampKey, d.DevTimestamp)
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return json.Marshal(m)
}

// IsSourceScript reports whether p carries an extension the bundler
// compiles to .js.
func IsSourceScript(p string) bool {
	return sourceScriptExts[strings.ToLower(path.Ext(p))]
}

// NormalizePath converts p to forward slashes and strips a leading "./".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}

// RewriteScriptPath normalizes p and maps source-script extensions to the
// build output extension. Paths already ending in .js (or anything else)
// come back unchanged apart from normalization.
func RewriteScriptPath(p string) string {
	p = NormalizePath(p)
	ext := path.Ext(p)
	if sourceScriptExts[strings.ToLower(ext)] {
		return strings.TrimSuffix(p, ext) + ".js"
	}
	return p
}
