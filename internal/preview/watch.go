package preview

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var errWatcherClosed = errors.New("preview: file watcher closed")

// Watch calls onChange whenever path is written, created or replaced, until
// ctx is cancelled. The parent directory is watched so editors that save by
// renaming a temporary file are noticed.
func Watch(ctx context.Context, path string, onChange func()) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errWatcherClosed
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errWatcherClosed
			}
			return err
		}
	}
}
