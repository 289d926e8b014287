package ingest

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/zap"
)

// Watch submits every file StartWatcher reports until ctx ends. Files that
// vanished before they could be read are skipped quietly.
func (i *FSIngestor) Watch(ctx context.Context, cfg WatchConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = i.logger
	}
	events, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := i.IngestPath(ctx, p); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				i.logger.Warn("ingest.watch.failed", zap.String("path", p), zap.Error(err))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			i.logger.Warn("ingest.watch.error", zap.Error(err))
		}
	}
}
