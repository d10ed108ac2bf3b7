package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pricecast/internal/logging"
)

// ChangeFunc receives the record after an external change. ok is false when
// the record was removed or is unusable.
type ChangeFunc func(rec *Record, ok bool)

// Watch blocks until ctx is done, calling fn whenever the record stored
// under key in dir is written or removed by any process.
func Watch(ctx context.Context, dir, key string, fn ChangeFunc, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	storage, err := NewFileStorage(dir)
	if err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	repo := NewRepository(storage, key)
	target := filepath.Clean(storage.Path(key))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: FileStorage replaces the file by rename.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			rec, err := repo.Read()
			if err != nil {
				logger.Debug(ctx, "session record unavailable after change",
					zap.String("op", event.Op.String()), zap.Error(err))
				fn(nil, false)
				continue
			}
			fn(rec, true)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "session watcher error", zap.Error(err))
		}
	}
}
