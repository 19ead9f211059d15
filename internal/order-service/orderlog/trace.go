package orderlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/gym-membership/internal/order-service/domain"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo returns the hex trace and span ids of the active span,
// or empty strings when ctx carries none.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry snapshots order with the trace info found in ctx.
func NewEntry(ctx context.Context, order domain.Order, at time.Time) *Entry {
	ti := ExtractTraceInfo(ctx)
	return &Entry{
		OrderID:    order.ID,
		Status:     string(order.Status),
		Plan:       order.Plan,
		Amount:     order.Amount,
		PaymentID:  order.PaymentID,
		TraceID:    ti.TraceID,
		SpanID:     ti.SpanID,
		RecordedAt: at.UTC(),
	}
}
