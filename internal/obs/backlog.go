// Copyright 2025 James Ross
package obs

import (
	"context"
	"database/sql"
	"time"

	"github.com/flyingrobots/pigtrack/internal/config"
	"go.uber.org/zap"
)

var backlogStatuses = []string{"NEW", "RETRY", "SENDING", "SENT", "DEAD"}

// StartOutboxBacklogSampler periodically updates the OutboxBacklog
// gauge from notifications_outbox's status counts.
func StartOutboxBacklogSampler(ctx context.Context, cfg *config.Config, db *sql.DB, log *zap.Logger) {
	interval := 10 * time.Second
	if cfg.Observability.SampleInterval > 0 {
		interval = cfg.Observability.SampleInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, status := range backlogStatuses {
					var n int
					row := db.QueryRowContext(ctx, `SELECT count(*) FROM notifications_outbox WHERE status = $1`, status)
					if err := row.Scan(&n); err != nil {
						log.Debug("outbox backlog poll error", String("status", status), Err(err))
						continue
					}
					OutboxBacklog.WithLabelValues(status).Set(float64(n))
				}
			}
		}
	}()
}
