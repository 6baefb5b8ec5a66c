package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Metadata holds the package.json fields the manifest backfills draw from.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// ReadMetadata reads name, version and description from the project's
// package.json. A missing file yields zero values, not an error; projects
// without one simply get no backfill.
func ReadMetadata(projectDir string) (Metadata, error) {
	pkgPath := filepath.Join(projectDir, "package.json")
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, nil
		}
		return Metadata{}, fmt.Errorf("reading package.json: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing package.json: %w", err)
	}
	return meta, nil
}
