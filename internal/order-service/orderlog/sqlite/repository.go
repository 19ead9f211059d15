// Package sqlite stores order log entries in the service's SQLite database.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jcmexdev/gym-membership/internal/order-service/orderlog"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z"

// Repository is the SQLite implementation of orderlog.Repository. The
// order_log table is created by the database migrations.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type entryRow struct {
	OrderID    string `db:"order_id"`
	Status     string `db:"status"`
	Plan       string `db:"plan"`
	Amount     int64  `db:"amount"`
	PaymentID  string `db:"payment_id"`
	TraceID    string `db:"trace_id"`
	SpanID     string `db:"span_id"`
	RecordedAt string `db:"recorded_at"`
}

// Save appends entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *orderlog.Entry) error {
	const q = `
		INSERT INTO order_log
			(order_id, status, plan, amount, payment_id, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrderID,
		entry.Status,
		entry.Plan,
		entry.Amount,
		entry.PaymentID,
		entry.TraceID,
		entry.SpanID,
		entry.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save order log for %q: %w", entry.OrderID, err)
	}
	return nil
}

// ListByOrder returns every entry for orderID, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]orderlog.Entry, error) {
	const q = `
		SELECT order_id, status, plan, amount, payment_id, trace_id, span_id, recorded_at
		FROM   order_log
		WHERE  order_id = ?
		ORDER  BY recorded_at ASC, id ASC`

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, q, orderID); err != nil {
		return nil, fmt.Errorf("sqlite: list order log for %q: %w", orderID, err)
	}

	entries := make([]orderlog.Entry, 0, len(rows))
	for _, row := range rows {
		recordedAt, err := parseRFC3339(row.RecordedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, orderlog.Entry{
			OrderID:    row.OrderID,
			Status:     row.Status,
			Plan:       row.Plan,
			Amount:     row.Amount,
			PaymentID:  row.PaymentID,
			TraceID:    row.TraceID,
			SpanID:     row.SpanID,
			RecordedAt: recordedAt,
		})
	}
	return entries, nil
}
