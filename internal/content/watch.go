package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Sink stores validated quest documents.
type Sink interface {
	PutQuest(ctx context.Context, d QuestDoc) error
}

// IsQuestFile reports whether path has a quest document extension.
func IsQuestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// ImportDir loads every quest file directly under dir into sink. Invalid
// files are skipped and reported together; valid ones are still stored.
func ImportDir(ctx context.Context, dir string, sink Sink) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading content dir: %w", err)
	}
	var n int
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !IsQuestFile(e.Name()) {
			continue
		}
		if err := importFile(ctx, filepath.Join(dir, e.Name()), sink); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func importFile(ctx context.Context, path string, sink Sink) error {
	d, err := LoadFile(path)
	if err != nil {
		return err
	}
	return sink.PutQuest(ctx, d)
}

// Watcher re-imports quest files in a directory when they change. Rapid
// successive writes to one file are collapsed into a single import.
type Watcher struct {
	dir      string
	sink     Sink
	logger   *slog.Logger
	debounce time.Duration
}

func NewWatcher(dir string, sink Sink, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, sink: sink, logger: logger, debounce: 500 * time.Millisecond}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching quest content", "dir", w.dir)

	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.debounce / 5)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !IsQuestFile(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("content watcher error", "error", err)

		case now := <-tick.C:
			for path, at := range pending {
				if now.Sub(at) < w.debounce {
					continue
				}
				delete(pending, path)
				w.reload(ctx, path)
			}
		}
	}
}

func (w *Watcher) reload(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Renamed away or deleted; the stored quest stays.
		return
	}
	if err := importFile(ctx, path, w.sink); err != nil {
		w.logger.Warn("quest reload failed", "path", path, "error", err)
		return
	}
	w.logger.Info("quest reloaded", "path", path)
}
