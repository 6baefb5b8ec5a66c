// Package build runs the extension build pipeline: it loads the manifest,
// discovers entry points, compiles them with the embedded bundler, copies
// static assets, and writes the processed manifest into the output
// directory.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/extkit/cli/internal/assets"
	"github.com/extkit/cli/internal/entry"
	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/project"
)

// ClientScripts holds the per-context reload client code appended to
// compiled entries in development mode. Empty fields skip their context.
type ClientScripts struct {
	Background string
	Content    string
	Page       string
}

// Options configures a pipeline run.
type Options struct {
	// ProjectDir is the extension project root. Defaults to the current
	// directory.
	ProjectDir string

	// OutputDir overrides the build output directory.
	OutputDir string

	// Mode selects development or production behavior.
	Mode manifest.Mode

	// Minify enables minification of compiled scripts and copied CSS.
	// Only honored in production mode.
	Minify bool

	// Sourcemap emits linked source maps in production mode. Development
	// builds always inline them.
	Sourcemap bool

	// Defines are extra compile-time constant substitutions, keyed by the
	// full expression to replace.
	Defines map[string]string

	// AssumeYes skips the confirmation prompt before clearing an output
	// directory that does not look like a previous build.
	AssumeYes bool

	// Inject carries the reload client code for development builds.
	Inject *ClientScripts
}

// Result summarizes a completed pipeline run.
type Result struct {
	Layout     *project.Layout
	Manifest   *manifest.Document
	Entries    *entry.Entries
	AssetCount int
	Duration   time.Duration
}

// Driver executes the build pipeline. A single driver can run repeatedly
// over the same project, reusing the bundler's incremental state between
// development rebuilds.
type Driver struct {
	compiler Compiler
	out      *output.Writer

	layout    *project.Layout
	handle    RebuildHandle
	handleSig string
}

// New creates a pipeline driver.
func New(compiler Compiler, out *output.Writer) *Driver {
	return &Driver{compiler: compiler, out: out}
}

// Run executes the pipeline stages in order and returns a summary.
func (d *Driver) Run(opts *Options) (*Result, error) {
	resolveOptions(opts)
	started := time.Now()

	st := &state{opts: opts}
	for _, sg := range d.stages() {
		begin := time.Now()
		if err := sg.run(st); err != nil {
			return nil, fmt.Errorf("%s: %w", sg.name, err)
		}
		d.out.Debug("stage %-15s %s", sg.name, time.Since(begin).Round(time.Millisecond))
	}

	return &Result{
		Layout:     st.layout,
		Manifest:   st.doc,
		Entries:    st.entries,
		AssetCount: st.assetCount,
		Duration:   time.Since(started),
	}, nil
}

// Layout returns the project layout resolved by the first run, or nil if
// no run got that far.
func (d *Driver) Layout() *project.Layout {
	return d.layout
}

// Close releases the bundler's incremental state.
func (d *Driver) Close() {
	if d.handle != nil {
		d.handle.Dispose()
		d.handle = nil
		d.handleSig = ""
	}
}

func resolveOptions(opts *Options) {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
}

type state struct {
	opts       *Options
	layout     *project.Layout
	meta       project.Metadata
	doc        *manifest.Document
	entries    *entry.Entries
	assetCount int
}

type stage struct {
	name string
	run  func(*state) error
}

func (d *Driver) stages() []stage {
	return []stage{
		{"resolve", d.resolve},
		{"metadata", d.metadata},
		{"load-manifest", d.loadManifest},
		{"entries", d.discoverEntries},
		{"prepare-output", d.prepareOutput},
		{"compile", d.compile},
		{"inject", d.inject},
		{"assets", d.copyAssets},
		{"manifest-write", d.writeManifest},
	}
}

// resolve locates the project layout once and reuses it across rebuilds,
// so a multi-manifest prompt is only answered on the first run.
func (d *Driver) resolve(st *state) error {
	if d.layout != nil {
		st.layout = d.layout
		return nil
	}
	layout, err := project.Locate(st.opts.ProjectDir, st.opts.OutputDir, d.out)
	if err != nil {
		return err
	}
	d.layout = layout
	st.layout = layout
	return nil
}

func (d *Driver) metadata(st *state) error {
	meta, err := project.ReadMetadata(st.layout.ProjectDir)
	if err != nil {
		return err
	}
	st.meta = meta
	return nil
}

func (d *Driver) loadManifest(st *state) error {
	doc, err := manifest.Load(st.layout.ManifestPath)
	if err != nil {
		return err
	}
	st.doc = doc
	return nil
}

func (d *Driver) discoverEntries(st *state) error {
	ents, err := entry.Discover(st.layout, st.doc, d.out)
	if err != nil {
		return err
	}
	if ents.Total() == 0 {
		d.out.Warning("no script entry points found in %s", st.layout.ManifestPath)
	}
	st.entries = ents
	return nil
}

// prepareOutput clears the output directory for production builds and
// creates it for development builds. Development rebuilds overwrite in
// place so a failed compile leaves the previous output loadable.
func (d *Driver) prepareOutput(st *state) error {
	if st.opts.Mode == manifest.ModeProduction {
		if err := d.cleanOutput(st); err != nil {
			return err
		}
	}
	return os.MkdirAll(st.layout.OutputDir, 0o755)
}

func (d *Driver) cleanOutput(st *state) error {
	names, err := os.ReadDir(st.layout.OutputDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	if !looksLikeBuildOutput(names) {
		msg := fmt.Sprintf("output directory %s contains files that are not from a previous build and will be deleted", st.layout.OutputDir)
		if err := d.out.ConfirmDestructive(msg, st.opts.AssumeYes); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(st.layout.OutputDir); err != nil {
		return fmt.Errorf("clearing output directory: %w", err)
	}
	return nil
}

// looksLikeBuildOutput reports whether a directory listing resembles a
// previous extension build, keyed on the presence of a manifest.
func looksLikeBuildOutput(names []os.DirEntry) bool {
	for _, e := range names {
		if !e.IsDir() && e.Name() == "manifest.json" {
			return true
		}
	}
	return false
}

func (d *Driver) compile(st *state) error {
	if st.entries.Total() == 0 {
		return nil
	}
	bopts := bundlerOptions(st.opts, st.layout, st.entries)

	var result api.BuildResult
	if st.opts.Mode == manifest.ModeDevelopment {
		sig := entrySignature(st.entries)
		if d.handle == nil || d.handleSig != sig {
			d.Close()
			handle, err := d.compiler.Watch(bopts)
			if err != nil {
				return err
			}
			d.handle = handle
			d.handleSig = sig
		}
		result = d.handle.Rebuild()
	} else {
		result = d.compiler.Build(bopts)
	}

	for _, warning := range formatWarnings(result.Warnings) {
		d.out.Warning("%s", strings.TrimRight(warning, "\n"))
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d error(s)\n%s", len(result.Errors), strings.Join(formatMessages(result.Errors), ""))
	}
	return nil
}

// inject appends the reload client to each compiled entry so running
// extension contexts can reconnect after a rebuild.
func (d *Driver) inject(st *state) error {
	if st.opts.Mode != manifest.ModeDevelopment || st.opts.Inject == nil {
		return nil
	}
	groups := []struct {
		entries []entry.Entry
		snippet string
	}{
		{st.entries.Background.Entries(), st.opts.Inject.Background},
		{st.entries.Content.Entries(), st.opts.Inject.Content},
		{st.entries.Pages.Entries(), st.opts.Inject.Page},
	}
	for _, g := range groups {
		if g.snippet == "" {
			continue
		}
		for _, e := range g.entries {
			path := filepath.Join(st.layout.OutputDir, filepath.FromSlash(e.Name)+".js")
			if err := appendClient(path, g.snippet); err != nil {
				return fmt.Errorf("appending reload client to %s.js: %w", e.Name, err)
			}
		}
	}
	return nil
}

func appendClient(path, snippet string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	data = append(data, snippet...)
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func (d *Driver) copyAssets(st *state) error {
	found := assets.Discover(st.layout, st.doc, st.entries, d.out)

	var transform assets.Transform
	if st.opts.Mode == manifest.ModeProduction && st.opts.Minify {
		transform = CSSMinify()
	}

	count, err := assets.Materialize(found, st.layout, transform, d.out)
	if err != nil {
		return err
	}
	st.assetCount = count
	return nil
}

func (d *Driver) writeManifest(st *state) error {
	manifest.Process(st.doc, st.meta, st.opts.Mode, d.out)
	target := filepath.Join(st.layout.OutputDir, "manifest.json")
	if err := st.doc.Save(target); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}
