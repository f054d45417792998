package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/logging"
)

const watchDebounce = 1 * time.Second

// watchCatalog runs callback once, then again after every change to path,
// until ctx is cancelled. When path is a directory, changes to the catalog
// files directly inside it count.
func watchCatalog(ctx context.Context, path string, callback func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	relevant := func(name string) bool { return name == path }
	dir := filepath.Dir(path)
	if info.IsDir() {
		dir = path
		relevant = func(name string) bool {
			return filepath.Dir(name) == path && catalog.IsCatalogFile(name)
		}
	}
	// Watch the directory too: editors replace files instead of writing them.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	if err := callback(); err != nil {
		logging.L().Errorf("Run failed: %v", err)
	}
	logging.Infof("Watching %s for changes", path)

	trigger := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(filepath.Clean(event.Name)) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			logging.Infof("Detected change in %s", filepath.Base(path))
			if err := callback(); err != nil {
				logging.L().Errorf("Run failed: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.L().Warnf("Watch error: %v", err)
		}
	}
}
