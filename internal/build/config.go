package build

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/extkit/cli/internal/assets"
	"github.com/extkit/cli/internal/entry"
	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/project"
)

// assetLoaders maps file extensions that scripts may import to the file
// loader, so images and fonts referenced from code are emitted alongside
// the compiled entries.
var assetLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".ico":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".ttf":   api.LoaderFile,
}

// bundlerOptions assembles the esbuild configuration for the discovered
// entry set. Every entry compiles to <name>.js under the output directory
// so the rewritten manifest paths resolve.
func bundlerOptions(opts *Options, layout *project.Layout, ents *entry.Entries) api.BuildOptions {
	points := make([]api.EntryPoint, 0, ents.Total())
	for _, e := range ents.Merged().Entries() {
		points = append(points, api.EntryPoint{
			InputPath:  filepath.Join(layout.SourceRoot, filepath.FromSlash(e.Source)),
			OutputPath: e.Name,
		})
	}

	prod := opts.Mode == manifest.ModeProduction

	sourcemap := api.SourceMapInline
	if prod {
		sourcemap = api.SourceMapNone
		if opts.Sourcemap {
			sourcemap = api.SourceMapLinked
		}
	}

	nodeEnv := "development"
	if prod {
		nodeEnv = "production"
	}
	define := map[string]string{
		"process.env.NODE_ENV": fmt.Sprintf("%q", nodeEnv),
	}
	for key, value := range opts.Defines {
		define[key] = value
	}

	return api.BuildOptions{
		EntryPointsAdvanced: points,
		Outdir:              layout.OutputDir,
		AbsWorkingDir:       layout.ProjectDir,
		Bundle:              true,
		Write:               true,
		Platform:            api.PlatformBrowser,
		Format:              api.FormatIIFE,
		Target:              api.ES2020,
		JSX:                 api.JSXAutomatic,
		Loader:              assetLoaders,
		Define:              define,
		Sourcemap:           sourcemap,
		MinifyWhitespace:    prod && opts.Minify,
		MinifyIdentifiers:   prod && opts.Minify,
		MinifySyntax:        prod && opts.Minify,
		LogLevel:            api.LogLevelSilent,
	}
}

// CSSMinify returns the stylesheet transform applied to copied CSS in
// production builds.
func CSSMinify() assets.Transform {
	return func(rel string, css []byte) ([]byte, error) {
		result := api.Transform(string(css), api.TransformOptions{
			Loader:           api.LoaderCSS,
			MinifyWhitespace: true,
			MinifySyntax:     true,
		})
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("minifying %s: %s", rel, strings.Join(formatMessages(result.Errors), "\n"))
		}
		return result.Code, nil
	}
}

// entrySignature identifies an entry set so the incremental compile
// context can be rebuilt when entries appear or disappear.
func entrySignature(ents *entry.Entries) string {
	merged := ents.Merged().Entries()
	parts := make([]string, 0, len(merged))
	for _, e := range merged {
		parts = append(parts, e.Name+"="+e.Source)
	}
	return strings.Join(parts, ";")
}
