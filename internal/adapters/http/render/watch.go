package render

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/homeview/pkg/logger"
)

// reloadDebounce coalesces the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

func dirFS(dir string) fs.FS { return os.DirFS(dir) }

// Watch reloads templates whenever a file under the template dir changes and
// then calls onChange (which may be nil). It blocks until ctx is done.
// A failed reload keeps the previous templates and does not call onChange.
func (r *Resolver) Watch(ctx context.Context, onChange func()) error {
	if r.dir == "" {
		return ErrWatchUnsupported
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatch, err)
	}
	defer func() { _ = w.Close() }()

	if err := addTree(w, r.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrWatch, err)
	}
	r.logger.Info(ctx, "watching templates", logger.String("dir", r.dir))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addTree(w, ev.Name)
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				r.logger.Error(ctx, "template reload failed", logger.Error(err))
				continue
			}
			r.logger.Info(ctx, "templates reloaded", logger.Int("views", len(r.Views())))
			if onChange != nil {
				onChange()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn(ctx, "template watcher error", logger.Error(err))
		}
	}
}

// addTree registers dir and every directory below it; fsnotify is not recursive.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
