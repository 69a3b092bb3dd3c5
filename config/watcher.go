package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/utils"
)

// A FileWatcher delivers a freshly read config every time its file is written. Writes that do not
// produce a valid config are logged and skipped.
type FileWatcher struct {
	fsWatcher *fsnotify.Watcher
	configCh  chan *Config
	workers   *utils.StoppableWorkers
}

// NewFileWatcher watches the config file at path. The parent directory is watched so that editors
// replacing the file by rename are still seen.
func NewFileWatcher(path string, logger logging.Logger) (*FileWatcher, error) {
	path = filepath.Clean(path)
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "watching %q", path), fsWatcher.Close())
	}

	w := &FileWatcher{
		fsWatcher: fsWatcher,
		configCh:  make(chan *Config),
	}
	w.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("config watcher error", "error", err)
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				cfg, err := Read(ctx, path, logger)
				if err != nil {
					logger.Errorw("error reading config after write", "path", path, "error", err)
					continue
				}
				select {
				case <-ctx.Done():
					return
				case w.configCh <- cfg:
				}
			}
		}
	})
	return w, nil
}

// Config returns the channel new configs arrive on.
func (w *FileWatcher) Config() <-chan *Config {
	return w.configCh
}

// Close stops watching.
func (w *FileWatcher) Close() error {
	w.workers.Stop()
	return w.fsWatcher.Close()
}
