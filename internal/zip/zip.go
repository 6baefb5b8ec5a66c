// Package zip creates distribution archives from build output directories.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/boyter/gocodewalker"
)

// excludedDirs never land in a distribution archive.
var excludedDirs = []string{
	"node_modules",
	".git",
}

// Stats summarizes a created archive.
type Stats struct {
	Files int
	Bytes int64
}

// Directory creates a zip archive from the contents of srcDir. With an
// empty zipPath the archive is created as a sibling of srcDir with a .zip
// extension. Returns the archive path and its stats.
func Directory(srcDir, zipPath string) (string, Stats, error) {
	var stats Stats

	absDir, err := filepath.Abs(srcDir)
	if err != nil {
		return "", stats, fmt.Errorf("resolving directory path: %w", err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return "", stats, fmt.Errorf("source directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return "", stats, fmt.Errorf("source path is not a directory: %s", absDir)
	}

	if zipPath == "" {
		zipPath = absDir + ".zip"
	}
	f, err := os.Create(zipPath)
	if err != nil {
		return "", stats, fmt.Errorf("creating zip file: %w", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	fileQueue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(absDir, fileQueue)
	walker.IncludeHidden = true
	walker.ExcludeDirectory = append(walker.ExcludeDirectory, excludedDirs...)

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	dirsAdded := make(map[string]struct{})

	for file := range fileQueue {
		relPath, err := filepath.Rel(absDir, file.Location)
		if err != nil {
			return "", stats, fmt.Errorf("computing relative path: %w", err)
		}
		// Zip spec requires forward slashes
		relPath = filepath.ToSlash(relPath)

		if err := addParentDirs(w, relPath, dirsAdded); err != nil {
			return "", stats, err
		}

		writer, err := w.Create(relPath)
		if err != nil {
			return "", stats, fmt.Errorf("creating zip entry %s: %w", relPath, err)
		}

		src, err := os.Open(file.Location)
		if err != nil {
			return "", stats, fmt.Errorf("opening file %s: %w", relPath, err)
		}
		n, err := io.Copy(writer, src)
		src.Close()
		if err != nil {
			return "", stats, fmt.Errorf("adding %s to zip: %w", relPath, err)
		}

		stats.Files++
		stats.Bytes += n
	}

	if err := <-errChan; err != nil {
		return "", stats, fmt.Errorf("walking %s: %w", absDir, err)
	}

	return zipPath, stats, nil
}

// addParentDirs creates the directory entries leading to relPath once.
func addParentDirs(w *zip.Writer, relPath string, dirsAdded map[string]struct{}) error {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." || dir == "" {
		return nil
	}

	var current string
	for _, segment := range strings.Split(dir, "/") {
		if current == "" {
			current = segment
		} else {
			current = current + "/" + segment
		}
		key := current + "/"
		if _, exists := dirsAdded[key]; exists {
			continue
		}
		if _, err := w.Create(key); err != nil {
			return fmt.Errorf("creating zip entry %s: %w", key, err)
		}
		dirsAdded[key] = struct{}{}
	}
	return nil
}
