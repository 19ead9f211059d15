package paymentservice

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Verification carries what a payment gateway callback would hand back for
// an order.
type Verification struct {
	OrderID   string
	PaymentID string
	Signature string
	Amount    int64
}

// Payment is a payment the simulator has accepted.
type Payment struct {
	OrderID    string
	PaymentID  string
	Amount     int64
	AcceptedAt time.Time
}

// Simulator stands in for a real gateway verifier: every verification is
// accepted and the signature is never checked. Payments are kept per
// payment id, so concurrent verifications of one order each hold their own
// record until voided.
type Simulator struct {
	mu       sync.Mutex
	payments map[string]Payment
	now      func() time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{
		payments: make(map[string]Payment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Verify records the payment. Verifying a payment id again keeps the first
// record.
func (s *Simulator) Verify(ctx context.Context, v Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.InfoContext(ctx, "simulated payment verification",
		"order_id", v.OrderID,
		"payment_id", v.PaymentID,
		"amount", v.Amount,
		"signature_present", v.Signature != "",
	)

	if existing, ok := s.payments[v.PaymentID]; ok {
		slog.WarnContext(ctx, "payment already recorded",
			"order_id", existing.OrderID,
			"payment_id", existing.PaymentID,
		)
		return nil
	}

	s.payments[v.PaymentID] = Payment{
		OrderID:    v.OrderID,
		PaymentID:  v.PaymentID,
		Amount:     v.Amount,
		AcceptedAt: s.now(),
	}
	return nil
}

// Payment returns the payment recorded under paymentID.
func (s *Simulator) Payment(paymentID string) (Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	return p, ok
}

// PaymentsForOrder returns the payments held for orderID, ordered by
// payment id.
func (s *Simulator) PaymentsForOrder(orderID string) []Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out
}

// Void drops paymentID when it was recorded for orderID. Voiding a payment
// that was never recorded is not an error.
func (s *Simulator) Void(ctx context.Context, orderID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.payments[paymentID]; ok && p.OrderID == orderID {
		delete(s.payments, paymentID)
		slog.InfoContext(ctx, "simulated payment voided", "order_id", orderID, "payment_id", paymentID)
	}
	return nil
}
