// Package config handles project-level configuration stored in .extkit.json.
// Every field is optional; a project with no config file builds with
// defaults (zero configuration is the normal case).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the project-level config file name.
const FileName = ".extkit.json"

// Reload strategy values accepted in the config file and --reload-strategy.
const (
	ReloadWebSocket = "websocket"
	ReloadPoll      = "poll"
)

// ProjectConfig represents the project-level configuration file.
type ProjectConfig struct {
	// Port is the preferred dev server port.
	Port int `json:"port,omitempty"`
	// Reload selects the dev reload strategy: "websocket" or "poll".
	Reload string `json:"reload,omitempty"`
	// OutputDir overrides the build output directory.
	OutputDir string `json:"output_dir,omitempty"`
}

// LoadDir reads the project config from dir.
// Returns (nil, nil) if the file does not exist.
func LoadDir(dir string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var cfg ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	if cfg.Reload != "" && cfg.Reload != ReloadWebSocket && cfg.Reload != ReloadPoll {
		return nil, fmt.Errorf("%s: reload must be %q or %q, got %q", FileName, ReloadWebSocket, ReloadPoll, cfg.Reload)
	}

	return &cfg, nil
}
