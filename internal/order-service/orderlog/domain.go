// Package orderlog is an append-only audit trail of order transitions.
//
// Every create and every created→paid transition appends one entry tagged
// with the active trace, so an order can be followed from its log rows to
// the request that changed it. The registry of orders itself is in memory;
// nothing is ever restored from this log.
package orderlog

import "time"

// Entry is a point-in-time snapshot of an order after a transition.
type Entry struct {
	OrderID    string
	Status     string
	Plan       string
	Amount     int64
	PaymentID  string
	TraceID    string
	SpanID     string
	RecordedAt time.Time
}
