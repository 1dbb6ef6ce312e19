// Package outbox stores notifications in the same transaction as the state
// change that caused them and relays them to a broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/database"
)

type Record struct {
	ID        int64           `json:"id"`
	EventID   uuid.UUID       `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// Insert queues payload. Pass the caller's transaction so the row commits or
// rolls back with the change it describes.
func Insert(ctx context.Context, q database.Querier, eventID uuid.UUID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		eventID, topic, key, string(data))
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func MarkSent(ctx context.Context, q database.Querier, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}

// FetchPending returns unsent rows oldest first.
func FetchPending(ctx context.Context, q database.Querier, limit int) ([]Record, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, event_id, topic, key, payload, created_at, sent_at
		 FROM outbox
		 WHERE sent_at IS NULL
		 ORDER BY id
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
