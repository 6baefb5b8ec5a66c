package build

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Compiler abstracts the embedded bundler for testing.
type Compiler interface {
	// Build runs a one-shot compile.
	Build(opts api.BuildOptions) api.BuildResult
	// Watch prepares an incremental handle for repeated rebuilds of the
	// same entry set.
	Watch(opts api.BuildOptions) (RebuildHandle, error)
}

// RebuildHandle is an incremental compile context.
type RebuildHandle interface {
	Rebuild() api.BuildResult
	Dispose()
}

// EsbuildCompiler implements Compiler on the esbuild API.
type EsbuildCompiler struct{}

// Build runs a one-shot esbuild compile.
func (EsbuildCompiler) Build(opts api.BuildOptions) api.BuildResult {
	return api.Build(opts)
}

// Watch creates an esbuild context for incremental rebuilds.
func (EsbuildCompiler) Watch(opts api.BuildOptions) (RebuildHandle, error) {
	ctx, err := api.Context(opts)
	if err != nil {
		return nil, fmt.Errorf("preparing incremental build: %s", strings.Join(formatMessages(err.Errors), "\n"))
	}
	return esbuildHandle{ctx}, nil
}

type esbuildHandle struct {
	ctx api.BuildContext
}

func (h esbuildHandle) Rebuild() api.BuildResult {
	return h.ctx.Rebuild()
}

func (h esbuildHandle) Dispose() {
	h.ctx.Dispose()
}

// formatMessages renders bundler diagnostics for terminal output.
func formatMessages(msgs []api.Message) []string {
	return api.FormatMessages(msgs, api.FormatMessagesOptions{
		Kind:  api.ErrorMessage,
		Color: false,
	})
}

// formatWarnings renders bundler warnings for terminal output.
func formatWarnings(msgs []api.Message) []string {
	return api.FormatMessages(msgs, api.FormatMessagesOptions{
		Kind:  api.WarningMessage,
		Color: false,
	})
}
