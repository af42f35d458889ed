// Package watch reports notes files that were created or rewritten under a
// directory tree.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Config struct {
	Root        string
	Debounce    time.Duration     // coalesce bursts of writes to the same files
	InitialScan bool              // emit files already present under Root
	Accept      func(string) bool // nil accepts every file
}

// Start watches cfg.Root recursively and sends each changed path once its
// burst of events has settled. The channel closes when ctx is done.
func Start(ctx context.Context, cfg Config, log *slog.Logger) (<-chan string, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: no root directory")
	}
	if cfg.Accept == nil {
		cfg.Accept = func(string) bool { return true }
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var existing []string
	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && cfg.Accept(path) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer w.Close()

		send := func(path string) bool {
			select {
			case out <- path:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range existing {
			if !send(p) {
				return
			}
		}

		pending := make(map[string]struct{})
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		flush := func() bool {
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				if !send(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return

			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							log.Warn("failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
					continue
				}
				if !cfg.Accept(e.Name) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if !flush() {
					return
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watcher error", "error", err)
			}
		}
	}()

	return out, nil
}
