// Package watcher delivers debounced batches of source file changes. A
// quiet period after the last event collapses editor save bursts into one
// rebuild; changes arriving while a batch handler runs aggregate into the
// next batch.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/extkit/cli/internal/output"
)

// DefaultDebounce is the quiet period applied when Options.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// defaultExtensions qualify a changed file for a rebuild.
var defaultExtensions = []string{
	".ts", ".tsx", ".mts", ".cts", ".jsx", ".js", ".mjs", ".cjs",
	".css", ".html", ".json",
}

// Options configures a Watcher.
type Options struct {
	// Root is the directory tree to watch.
	Root string
	// Exclude lists directory names never descended into.
	Exclude []string
	// Extensions overrides the default set of qualifying file suffixes.
	Extensions []string
	// Debounce is the quiet period after the last event before a batch
	// fires. Zero means DefaultDebounce.
	Debounce time.Duration
	// Out receives watch diagnostics.
	Out *output.Writer
}

// Watcher owns the underlying file-system watches.
type Watcher struct {
	opts    Options
	exts    map[string]bool
	exclude map[string]bool
	fsw     *fsnotify.Watcher

	events  atomic.Int64
	batches atomic.Int64
}

// New creates a Watcher over opts.Root, recursively registering every
// non-excluded directory.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaultExtensions
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		opts:    opts,
		exts:    make(map[string]bool, len(opts.Extensions)),
		exclude: make(map[string]bool, len(opts.Exclude)),
		fsw:     fsw,
	}
	for _, ext := range opts.Extensions {
		w.exts[strings.ToLower(ext)] = true
	}
	for _, name := range opts.Exclude {
		w.exclude[name] = true
	}

	if err := w.addTree(opts.Root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", opts.Root, err)
	}
	return w, nil
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Stats returns the number of qualifying events seen and batches delivered.
func (w *Watcher) Stats() (events, batches int64) {
	return w.events.Load(), w.batches.Load()
}

// Run delivers debounced change batches to onBatch until ctx is cancelled.
// Batch entries are slash paths relative to the watch root, sorted and
// deduplicated. onBatch runs on the watch goroutine; events arriving while
// it executes collect into the following batch.
func (w *Watcher) Run(ctx context.Context, onBatch func(changed []string)) error {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.opts.Debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil && w.opts.Out != nil {
						w.opts.Out.Debug("watch %s: %v", ev.Name, err)
					}
					continue
				}
			}
			rel, ok := w.qualify(ev.Name)
			if !ok {
				continue
			}
			w.events.Add(1)
			pending[rel] = true
			resetTimer()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if w.opts.Out != nil {
				w.opts.Out.Warning("file watcher: %v", err)
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for rel := range pending {
				batch = append(batch, rel)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)
			w.batches.Add(1)
			onBatch(batch)
		}
	}
}

// qualify maps an event path to a root-relative slash path, rejecting
// files outside the qualifying extension set or under excluded directories.
func (w *Watcher) qualify(name string) (string, bool) {
	if !w.exts[strings.ToLower(filepath.Ext(name))] {
		return "", false
	}
	rel, err := filepath.Rel(w.opts.Root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if w.excluded(part) {
			return "", false
		}
	}
	return rel, true
}

// addTree registers dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && w.excluded(name) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// excluded reports whether a path element is never watched.
func (w *Watcher) excluded(name string) bool {
	if w.exclude[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
