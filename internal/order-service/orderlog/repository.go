package orderlog

import "context"

// Repository persists log entries. Save always appends.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	ListByOrder(ctx context.Context, orderID string) ([]Entry, error)
}
