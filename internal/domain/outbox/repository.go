package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert creates a new outbox entry (typically inside a transaction)
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns pending outbox entries up to the given limit
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	// MarkPublished marks an outbox entry as published
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records the relay error and increments retry count
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error

	// PurgePublished deletes entries published before olderThan
	PurgePublished(ctx context.Context, olderThan time.Time) (int64, error)
}
