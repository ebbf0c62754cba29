package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartStaleCredentialCleaner deletes credential rows that have not been
// written for longer than retention, checking every interval until ctx is done.
func StartStaleCredentialCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if interval <= 0 || retention <= 0 {
		log.Error("stale credential cleaner not started",
			zap.Duration("interval", interval), zap.Duration("retention", retention))
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention).Unix()
				res, err := db.ExecContext(ctx, `
                    DELETE FROM credentials
                     WHERE updated_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean stale credentials", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned stale credentials", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
