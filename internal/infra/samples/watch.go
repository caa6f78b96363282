package samples

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// Watch evicts cached samples of dir whenever their files change on disk,
// so a replaced recording is picked up by the next session. It blocks until
// ctx is done.
func (l *Library) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	zlog.Info().Msgf("samples: watching %s", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isSupported(event.Name) {
				continue
			}
			if l.Evict(event.Name) {
				zlog.Info().Msgf("samples: evicted changed sample: path=%s op=%s", event.Name, event.Op)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("samples: watcher error: %v", err)
		}
	}
}
