// Package watcher reruns a task whenever one of its input files changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch calls fn once, then again after every write, create or rename of one
// of paths, until ctx is done. The parent directories are watched so files
// replaced by editors or package managers are still picked up. Errors from fn
// are logged and do not end the loop.
func Watch(ctx context.Context, paths []string, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to creating a fsnotify watcher: %v", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %v", path, err)
		}
		watched[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add %s to the watcher: %v", dir, err)
		}
		dirs[dir] = true
	}

	run(fn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.Errorf("error watching input files: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			logrus.Debugf("watch event: %v", event)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				run(fn)
			}
		}
	}
}

func run(fn func() error) {
	if err := fn(); err != nil {
		logrus.Errorf("regeneration failed: %v", err)
	}
}
