package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/safar/marketplace-orders/internal/notify"
)

type Relay struct {
	db        *sql.DB
	publisher notify.Publisher
	batchSize int
	logger    *slog.Logger
}

func NewRelay(db *sql.DB, publisher notify.Publisher, batchSize int, logger *slog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{db: db, publisher: publisher, batchSize: batchSize, logger: logger}
}

// Flush publishes one batch of pending events in id order and returns how many
// were sent. It stops at the first publish failure so later events never
// overtake an earlier one; the failed row is retried on the next call.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := FetchPending(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		if err := r.publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			return sent, fmt.Errorf("publish outbox event %d: %w", rec.ID, err)
		}
		if err := MarkSent(ctx, r.db, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, err := r.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox flush failed", "sent", sent, "error", err)
				continue
			}
			if sent > 0 {
				r.logger.InfoContext(ctx, "outbox flushed", "sent", sent)
			}
		}
	}
}
