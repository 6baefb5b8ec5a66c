package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("mode file overrides base file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ".env"), "EXTKIT_PUBLIC_API=base\nSECRET=hidden\n")
		writeFile(t, filepath.Join(dir, ".env.development"), "EXTKIT_PUBLIC_API=dev\n")

		vars, err := Load(dir, "development")
		require.NoError(t, err)

		assert.Equal(t, "dev", vars["EXTKIT_PUBLIC_API"])
		assert.Equal(t, "hidden", vars["SECRET"])
	})

	t.Run("process environment wins", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ".env"), "EXTKIT_PUBLIC_API=file\n")
		t.Setenv("EXTKIT_PUBLIC_API", "process")

		vars, err := Load(dir, "production")
		require.NoError(t, err)
		assert.Equal(t, "process", vars["EXTKIT_PUBLIC_API"])
	})

	t.Run("missing files are fine", func(t *testing.T) {
		vars, err := Load(t.TempDir(), "production")
		require.NoError(t, err)
		assert.NotNil(t, vars)
	})

	t.Run("malformed file errors", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ".env"), "no equals sign here\n")

		_, err := Load(dir, "production")
		require.Error(t, err)
	})
}

func TestPublicDefines(t *testing.T) {
	vars := map[string]string{
		"EXTKIT_PUBLIC_API_URL": "https://api.example.com",
		"EXTKIT_PUBLIC_FLAG":    "on",
		"SECRET_TOKEN":          "never",
		"PATH":                  "/usr/bin",
	}

	defines := PublicDefines(vars)

	assert.Len(t, defines, 2)
	assert.Equal(t, `"https://api.example.com"`, defines["process.env.EXTKIT_PUBLIC_API_URL"])
	assert.Equal(t, `"on"`, defines["process.env.EXTKIT_PUBLIC_FLAG"])
	assert.NotContains(t, defines, "process.env.SECRET_TOKEN")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
