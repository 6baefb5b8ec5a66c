package manifest

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/project"
)

// Mode selects the build flavor a manifest is processed for.
type Mode string

const (
	// ModeDevelopment marks watch-loop builds; the processed manifest
	// carries a rebuild timestamp.
	ModeDevelopment Mode = "development"
	// ModeProduction marks release builds; processing is idempotent and
	// emits no development markers.
	ModeProduction Mode = "production"
)

// nowFunc can be replaced in tests for deterministic timestamps.
var nowFunc = time.Now

// Process rewrites doc for build output: metadata missing from the manifest
// is backfilled from package metadata, every script-like path is mapped to
// its compiled .js location, and development builds get a fresh rebuild
// timestamp. Production processing is idempotent; running it over an
// already processed document changes nothing.
func Process(doc *Document, meta project.Metadata, mode Mode, out *output.Writer) {
	backfill(doc, meta, out)
	rewritePaths(doc)

	if mode == ModeDevelopment {
		doc.DevTimestamp = nowFunc().UnixMilli()
	} else {
		doc.DevTimestamp = 0
	}
}

// backfill copies name, version and description from package metadata into
// the manifest when the manifest leaves them empty.
func backfill(doc *Document, meta project.Metadata, out *output.Writer) {
	if doc.Name == "" && meta.Name != "" {
		doc.Name = meta.Name
	}
	if doc.Description == "" && meta.Description != "" {
		doc.Description = meta.Description
	}
	if doc.Version == "" && meta.Version != "" {
		if v, err := extensionVersion(meta.Version); err != nil {
			out.Warning("cannot derive extension version from package version %q: %v", meta.Version, err)
		} else {
			if v != meta.Version {
				out.Warning("package version %q normalized to %q (extension versions allow only dotted integers)", meta.Version, v)
			}
			doc.Version = v
		}
	}
}

// extensionVersion converts a package version into the dotted-integer form
// extension stores accept, dropping prerelease and build suffixes.
func extensionVersion(pkgVersion string) (string, error) {
	v, err := semver.NewVersion(pkgVersion)
	if err != nil {
		return "", fmt.Errorf("not a semantic version: %w", err)
	}
	if v.Prerelease() == "" && v.Metadata() == "" {
		return pkgVersion, nil
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()), nil
}

// rewritePaths maps every script-like manifest path to the bundled .js
// location and normalizes the remaining resource paths.
func rewritePaths(doc *Document) {
	if bg := doc.Background; bg != nil {
		if bg.ServiceWorker != "" {
			bg.ServiceWorker = RewriteScriptPath(bg.ServiceWorker)
		}
		for i, s := range bg.Scripts {
			bg.Scripts[i] = RewriteScriptPath(s)
		}
		if bg.Page != "" {
			bg.Page = NormalizePath(bg.Page)
		}
	}

	for ci := range doc.ContentScripts {
		cs := &doc.ContentScripts[ci]
		for i, s := range cs.JS {
			cs.JS[i] = RewriteScriptPath(s)
		}
		for i, s := range cs.CSS {
			cs.CSS[i] = NormalizePath(s)
		}
	}

	for _, action := range []*Action{doc.Action, doc.BrowserAction, doc.PageAction} {
		if action == nil {
			continue
		}
		if action.DefaultPopup != "" {
			action.DefaultPopup = RewriteScriptPath(action.DefaultPopup)
		}
		normalizeIconSet(action.DefaultIcon)
	}

	if doc.OptionsPage != "" {
		doc.OptionsPage = NormalizePath(doc.OptionsPage)
	}
	if doc.OptionsUI != nil && doc.OptionsUI.Page != "" {
		doc.OptionsUI.Page = NormalizePath(doc.OptionsUI.Page)
	}
	if doc.DevtoolsPage != "" {
		doc.DevtoolsPage = NormalizePath(doc.DevtoolsPage)
	}

	for size, p := range doc.Icons {
		doc.Icons[size] = NormalizePath(p)
	}

	doc.WebAccessibleResources.rewriteResources(func(r string) string {
		if IsSourceScript(r) {
			return RewriteScriptPath(r)
		}
		return NormalizePath(r)
	})
}

// normalizeIconSet normalizes every path inside an icon declaration.
func normalizeIconSet(s *IconSet) {
	if s == nil {
		return
	}
	if s.Single != "" {
		s.Single = NormalizePath(s.Single)
	}
	for size, p := range s.Sizes {
		s.Sizes[size] = NormalizePath(p)
	}
}
