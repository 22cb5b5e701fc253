package validation

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
)

// Watch reloads the schema whenever its file is written or replaced, until
// ctx is cancelled. The parent directory is watched so that editors that
// save by rename are picked up. A schema that fails to load is logged and the
// previous one stays active.
//
// onReload, if non-nil, is called after every reload attempt.
func (v *SchemaValidator) Watch(ctx context.Context, logger *observability.Logger, onReload func(error)) error {
	if v.path == "" {
		return fmt.Errorf("schema has no backing file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	target := filepath.Clean(v.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer observability.RecoverPanic(logger, "schema watcher")
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				err := v.Reload()
				if err != nil {
					logger.WithError(err).WithField("path", target).Error("Schema reload failed, keeping previous schema")
				} else {
					logger.WithField("path", target).Info("Schema reloaded")
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Schema watcher error")
			}
		}
	}()

	logger.WithField("path", target).Info("Watching schema for changes")
	return nil
}
