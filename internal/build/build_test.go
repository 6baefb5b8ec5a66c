package build

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/output"
)

// mockCompiler stands in for esbuild: it writes one file per entry point
// the way a Write build would, and records how it was invoked.
type mockCompiler struct {
	buildOpts []api.BuildOptions
	watchOpts []api.BuildOptions
	rebuilds  int
	disposed  int
	errors    []api.Message
}

func (m *mockCompiler) Build(opts api.BuildOptions) api.BuildResult {
	m.buildOpts = append(m.buildOpts, opts)
	return m.emit(opts)
}

func (m *mockCompiler) Watch(opts api.BuildOptions) (RebuildHandle, error) {
	m.watchOpts = append(m.watchOpts, opts)
	return &mockHandle{compiler: m, opts: opts}, nil
}

func (m *mockCompiler) emit(opts api.BuildOptions) api.BuildResult {
	if len(m.errors) > 0 {
		return api.BuildResult{Errors: m.errors}
	}
	for _, p := range opts.EntryPointsAdvanced {
		path := filepath.Join(opts.Outdir, filepath.FromSlash(p.OutputPath)+".js")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			panic(err)
		}
		if err := os.WriteFile(path, []byte("// compiled "+p.OutputPath+"\n"), 0o644); err != nil {
			panic(err)
		}
	}
	return api.BuildResult{}
}

type mockHandle struct {
	compiler *mockCompiler
	opts     api.BuildOptions
}

func (h *mockHandle) Rebuild() api.BuildResult {
	h.compiler.rebuilds++
	return h.compiler.emit(h.opts)
}

func (h *mockHandle) Dispose() {
	h.compiler.disposed++
}

const testManifest = `{
  "manifest_version": 3,
  "name": "Demo",
  "version": "1.0.0",
  "background": {"service_worker": "src/background.ts"},
  "content_scripts": [
    {"matches": ["<all_urls>"], "js": ["src/content.ts"], "css": ["src/styles/content.css"]}
  ],
  "icons": {"16": "icons/16.png"}
}`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "manifest.json", testManifest)
	writeFile(t, dir, "package.json", `{"name": "demo", "version": "1.2.3"}`)
	writeFile(t, dir, "src/background.ts", "export {}\n")
	writeFile(t, dir, "src/content.ts", "export {}\n")
	writeFile(t, dir, "src/styles/content.css", "body {\n  color: red;\n}\n")
	writeFile(t, dir, "src/popup.ts", "export {}\n")
	writeFile(t, dir, "popup.html", `<html><body><script src="./src/popup.ts"></script></body></html>`)
	writeFile(t, dir, "icons/16.png", "png bytes")
	return dir
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestRunDevelopment(t *testing.T) {
	dir := writeProject(t)
	compiler := &mockCompiler{}
	d := New(compiler, output.NewTest(io.Discard))
	defer d.Close()

	result, err := d.Run(&Options{
		ProjectDir: dir,
		Mode:       manifest.ModeDevelopment,
		Inject: &ClientScripts{
			Background: "// bg client",
			Content:    "// content client",
			Page:       "// page client",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Entries.Total())
	assert.Equal(t, 3, result.AssetCount)
	assert.Len(t, compiler.watchOpts, 1)
	assert.Equal(t, 1, compiler.rebuilds)
	assert.Empty(t, compiler.buildOpts)

	dist := filepath.Join(dir, "dist")
	assert.Contains(t, readFile(t, dist, "src/background.js"), "// bg client")
	assert.Contains(t, readFile(t, dist, "src/content.js"), "// content client")
	assert.Contains(t, readFile(t, dist, "src/popup.js"), "// page client")

	written := readFile(t, dist, "manifest.json")
	assert.Contains(t, written, manifest.DevTimestampKey)
	assert.Contains(t, written, "src/background.js")
	assert.NotContains(t, written, "src/background.ts")

	assert.Contains(t, readFile(t, dist, "popup.html"), "./src/popup.js")
	assert.Equal(t, "body {\n  color: red;\n}\n", readFile(t, dist, "src/styles/content.css"))
	assert.Equal(t, "png bytes", readFile(t, dist, "icons/16.png"))
}

func TestRunDevelopmentReusesRebuildHandle(t *testing.T) {
	dir := writeProject(t)
	compiler := &mockCompiler{}
	d := New(compiler, output.NewTest(io.Discard))
	defer d.Close()

	opts := &Options{ProjectDir: dir, Mode: manifest.ModeDevelopment}
	_, err := d.Run(opts)
	require.NoError(t, err)
	_, err = d.Run(opts)
	require.NoError(t, err)

	assert.Len(t, compiler.watchOpts, 1)
	assert.Equal(t, 2, compiler.rebuilds)
	assert.Zero(t, compiler.disposed)
}

func TestRunDevelopmentRecreatesHandleOnNewEntry(t *testing.T) {
	dir := writeProject(t)
	compiler := &mockCompiler{}
	d := New(compiler, output.NewTest(io.Discard))
	defer d.Close()

	opts := &Options{ProjectDir: dir, Mode: manifest.ModeDevelopment}
	_, err := d.Run(opts)
	require.NoError(t, err)

	writeFile(t, dir, "src/options.ts", "export {}\n")
	writeFile(t, dir, "options.html", `<html><body><script src="./src/options.ts"></script></body></html>`)

	result, err := d.Run(opts)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Entries.Total())
	assert.Len(t, compiler.watchOpts, 2)
	assert.Equal(t, 1, compiler.disposed)
}

func TestRunDevelopmentKeepsOutputOnCompileError(t *testing.T) {
	dir := writeProject(t)
	compiler := &mockCompiler{}
	d := New(compiler, output.NewTest(io.Discard))
	defer d.Close()

	opts := &Options{ProjectDir: dir, Mode: manifest.ModeDevelopment}
	_, err := d.Run(opts)
	require.NoError(t, err)

	compiler.errors = []api.Message{{Text: "expected \")\" but found end of file"}}
	_, err = d.Run(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")

	assert.FileExists(t, filepath.Join(dir, "dist", "src", "background.js"))
	assert.FileExists(t, filepath.Join(dir, "dist", "manifest.json"))
}

func TestRunProduction(t *testing.T) {
	dir := writeProject(t)
	compiler := &mockCompiler{}
	d := New(compiler, output.NewTest(io.Discard))

	result, err := d.Run(&Options{
		ProjectDir: dir,
		Mode:       manifest.ModeProduction,
		Minify:     true,
	})
	require.NoError(t, err)

	require.Len(t, compiler.buildOpts, 1)
	assert.Empty(t, compiler.watchOpts)

	opts := compiler.buildOpts[0]
	assert.True(t, opts.MinifyWhitespace)
	assert.True(t, opts.MinifyIdentifiers)
	assert.Equal(t, api.SourceMapNone, opts.Sourcemap)
	assert.Equal(t, `"production"`, opts.Define["process.env.NODE_ENV"])

	dist := filepath.Join(dir, "dist")
	written := readFile(t, dist, "manifest.json")
	assert.NotContains(t, written, manifest.DevTimestampKey)

	assert.Contains(t, readFile(t, dist, "src/styles/content.css"), "body{color:red}")
	assert.NotContains(t, readFile(t, dist, "src/background.js"), "client")

	// Version comes from the manifest, untouched by package.json.
	assert.Equal(t, "1.0.0", result.Manifest.Version)
}

func TestRunProductionClearsPreviousBuild(t *testing.T) {
	dir := writeProject(t)
	writeFile(t, dir, "dist/manifest.json", `{"manifest_version": 3}`)
	writeFile(t, dir, "dist/stale.js", "old")

	d := New(&mockCompiler{}, output.NewTest(io.Discard))
	_, err := d.Run(&Options{ProjectDir: dir, Mode: manifest.ModeProduction})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "dist", "stale.js"))
	assert.FileExists(t, filepath.Join(dir, "dist", "manifest.json"))
}

func TestRunProductionRefusesUnrecognizedOutput(t *testing.T) {
	dir := writeProject(t)
	writeFile(t, dir, "dist/notes.txt", "do not lose me")

	d := New(&mockCompiler{}, output.NewTest(io.Discard))
	_, err := d.Run(&Options{ProjectDir: dir, Mode: manifest.ModeProduction})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.FileExists(t, filepath.Join(dir, "dist", "notes.txt"))

	_, err = d.Run(&Options{ProjectDir: dir, Mode: manifest.ModeProduction, AssumeYes: true})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "dist", "notes.txt"))
}

func TestRunStageOrder(t *testing.T) {
	dir := writeProject(t)
	var buf bytes.Buffer
	out := output.NewTest(&buf)
	out.SetVerbose(true)

	d := New(&mockCompiler{}, out)
	defer d.Close()
	_, err := d.Run(&Options{ProjectDir: dir, Mode: manifest.ModeDevelopment})
	require.NoError(t, err)

	logged := buf.String()
	offset := 0
	for _, name := range []string{
		"resolve", "metadata", "load-manifest", "entries",
		"prepare-output", "compile", "inject", "assets", "manifest-write",
	} {
		idx := strings.Index(logged[offset:], "stage "+name)
		require.GreaterOrEqual(t, idx, 0, "stage %s missing or out of order", name)
		offset += idx
	}
}
