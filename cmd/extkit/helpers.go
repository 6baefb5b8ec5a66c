package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/extkit/cli/internal/config"
	"github.com/extkit/cli/internal/reload"
)

// outputJSON marshals v as JSON to stdout. Used when --json is set.
func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// resolveFlag returns the flag value if non-empty, otherwise falls back to the environment variable.
func resolveFlag(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}

// resolveOutputDir picks the output directory using the priority:
// 1. --output-dir flag
// 2. EXTKIT_OUTPUT_DIR environment variable
// 3. output_dir in .extkit.json
// Empty means the project default applies.
func resolveOutputDir(cfg *config.ProjectConfig) string {
	if dir := resolveFlag(globalOutputDir, "EXTKIT_OUTPUT_DIR"); dir != "" {
		return dir
	}
	if cfg != nil {
		return cfg.OutputDir
	}
	return ""
}

// resolvePort picks the reload server port using the priority:
// 1. --port flag
// 2. EXTKIT_PORT environment variable
// 3. port in .extkit.json
// 4. the default port
func resolvePort(cfg *config.ProjectConfig) (int, error) {
	if devPort != 0 {
		return devPort, nil
	}
	if v := os.Getenv("EXTKIT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("EXTKIT_PORT %q is not a port number", v)
		}
		return port, nil
	}
	if cfg != nil && cfg.Port != 0 {
		return cfg.Port, nil
	}
	return reload.DefaultPort, nil
}

// resolveStrategy picks the reload strategy from flag, environment, or
// project config, in that order.
func resolveStrategy(cfg *config.ProjectConfig) (reload.Strategy, error) {
	value := resolveFlag(devStrategy, "EXTKIT_RELOAD_STRATEGY")
	if value == "" && cfg != nil {
		value = cfg.Reload
	}
	return reload.ParseStrategy(value)
}

func countLabel(n int) string {
	return strconv.Itoa(n)
}

// formatBytes returns a human-readable byte size.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
