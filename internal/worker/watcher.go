package worker

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// watchFile signals on the returned channel whenever path is written or
// replaced. The parent directory is watched because atomic replacement
// swaps the inode. A nil channel is returned when watching is unavailable;
// callers then rely on polling alone.
func watchFile(ctx context.Context, path string, log logrus.FieldLogger) (<-chan struct{}, func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Debug("file watching unavailable, polling only")
		return nil, func() {}
	}

	if err := w.Add(filepath.Dir(path)); err != nil {
		log.WithError(err).Debug("cannot watch data dir, polling only")
		_ = w.Close()
		return nil, func() {}
	}

	base := filepath.Base(path)
	wake := make(chan struct{}, 1)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WithError(err).Debug("watch error")
			}
		}
	}()

	return wake, func() { _ = w.Close() }
}
