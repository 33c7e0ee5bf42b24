package locallog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
	"github.com/technojoe/claude-token-share/internal/usage"
)

// rescanDebounce coalesces bursts of filesystem events into one rescan.
const rescanDebounce = 2 * time.Second

// Watcher keeps a live aggregate of the scanner's directory tree,
// re-aggregating whenever conversation logs change.
type Watcher struct {
	scanner  *Scanner
	year     int
	onUpdate func(models.UsageData)
}

// NewWatcher creates a watcher over the scanner's root. onUpdate is called
// with a fresh aggregate after the initial scan and after every rescan.
func NewWatcher(scanner *Scanner, year int, onUpdate func(models.UsageData)) *Watcher {
	return &Watcher{scanner: scanner, year: year, onUpdate: onUpdate}
}

// Run blocks until ctx is cancelled, rescanning on .jsonl changes.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addDirs(fsw); err != nil {
		return err
	}

	w.rescan()

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need to be watched too.
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if pathDepth(w.scanner.Root(), event.Name) <= maxDepth && !skipDirs[filepath.Base(event.Name)] {
						if addErr := fsw.Add(event.Name); addErr != nil {
							logger.Warn("could not watch directory", "path", event.Name, "error", addErr)
						}
					}
				}
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(rescanDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("filesystem watcher error", "error", err)

		case <-fire:
			w.rescan()
		}
	}
}

func (w *Watcher) addDirs(fsw *fsnotify.Watcher) error {
	root := w.scanner.Root()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] || pathDepth(root, path) > maxDepth {
			return filepath.SkipDir
		}
		if addErr := fsw.Add(path); addErr != nil {
			logger.Warn("could not watch directory", "path", path, "error", addErr)
		}
		return nil
	})
}

func (w *Watcher) rescan() {
	records, err := w.scanner.Scan()
	if err != nil {
		logger.Warn("rescan failed", "root", w.scanner.Root(), "error", err)
		return
	}
	data := usage.Aggregate(records, w.year, models.SourceLocalFiles, "Claude Code (Local Files)")
	w.onUpdate(data)
}
