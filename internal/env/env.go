// Package env loads project dotenv files and exposes the public variable
// surface to bundled code. Only variables prefixed with EXTKIT_PUBLIC_
// reach the bundle; everything else stays on the build machine.
package env

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// PublicPrefix marks the variables surfaced to bundled code.
const PublicPrefix = "EXTKIT_PUBLIC_"

// Load reads .env and the mode-specific dotenv file from projectDir and
// returns the merged variables. Precedence, lowest to highest: .env,
// .env.<mode>, the process environment. Missing files are fine.
func Load(projectDir, mode string) (map[string]string, error) {
	merged := make(map[string]string)

	for _, name := range []string{".env", ".env." + mode} {
		path := filepath.Join(projectDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		for k, v := range vars {
			merged[k] = v
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, PublicPrefix) {
			continue
		}
		merged[key] = value
	}

	return merged, nil
}

// PublicDefines converts the public subset of vars into bundler define
// entries: each EXTKIT_PUBLIC_ variable becomes a process.env.<NAME>
// replacement carrying its value as a JSON string literal.
func PublicDefines(vars map[string]string) map[string]string {
	defines := make(map[string]string)
	for key, value := range vars {
		if !strings.HasPrefix(key, PublicPrefix) {
			continue
		}
		literal, err := json.Marshal(value)
		if err != nil {
			continue
		}
		defines["process.env."+key] = string(literal)
	}
	return defines
}

