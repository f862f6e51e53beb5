package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nhle/mailsync/internal/model"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// RulesReloader re-reads rules and re-applies them to stored records.
type RulesReloader interface {
	ReloadRules(ctx context.Context) (model.RuleSet, error)
}

// RulesWatcher reloads rules when the rules document changes on disk.
type RulesWatcher struct {
	reloader RulesReloader
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewRulesWatcher creates a watcher for the rules document at path.
func NewRulesWatcher(reloader RulesReloader, path string, logger *slog.Logger) *RulesWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RulesWatcher{
		reloader: reloader,
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger.With("component", "rules-watcher"),
	}
}

// Run watches until ctx is canceled. The parent directory is watched so
// that atomic renames onto the rules file are seen.
func (w *RulesWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", w.path, err)
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			// A removed file is left alone; recreating it would overwrite
			// the user's intent with defaults.
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
				continue
			}
			rules, err := w.reloader.ReloadRules(ctx)
			if err != nil {
				w.logger.Warn("rules reload failed", "path", abs, "error", err)
				continue
			}
			w.logger.Debug("rules reloaded", "path", abs, "rules", len(rules.Rules))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}
