package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jcmexdev/gym-membership/internal/coordinator"
	"github.com/jcmexdev/gym-membership/internal/order-service/domain"
	"github.com/jcmexdev/gym-membership/internal/order-service/orderlog"
	paymentservice "github.com/jcmexdev/gym-membership/internal/payment-service/app"
	"github.com/jcmexdev/gym-membership/internal/pkg/cache"
	"github.com/jcmexdev/gym-membership/internal/pkg/clock"
	"github.com/jcmexdev/gym-membership/internal/pkg/events"
	"github.com/jcmexdev/gym-membership/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/jcmexdev/gym-membership/internal/order-service/app")

const (
	defaultIdempotencyTTL = 24 * time.Hour
	sideEffectBacklog     = 1024
)

// PaymentVerifier confirms a payment for an order with the payment processor.
// Void releases a verified payment whose order could not be marked paid.
type PaymentVerifier interface {
	Verify(ctx context.Context, v paymentservice.Verification) error
	Void(ctx context.Context, orderID, paymentID string) error
}

// Service drives the order lifecycle on top of a Store.
type Service struct {
	store    *Store
	clock    clock.Clock
	verifier PaymentVerifier

	publisher events.Publisher
	auditLog  orderlog.Repository
	metrics   *metrics.OrderMetrics

	idempotency    cache.Cache
	idempotencyTTL time.Duration

	strictPlans bool
	newID       func(prefix string) string

	// idempotencyMu makes the replay lookup, insert and key write of an
	// idempotent create one step.
	idempotencyMu sync.Mutex

	// commitMu orders side effects the same way their store writes were
	// applied. A single worker drains sideEffects in that order.
	commitMu    sync.Mutex
	sideEffects chan sideEffect
	pending     sync.WaitGroup
}

type sideEffect struct {
	ctx       context.Context
	order     domain.Order
	eventType string
	at        time.Time
}

type ServiceOption func(*Service)

func WithVerifier(v PaymentVerifier) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithAuditLog(repo orderlog.Repository) ServiceOption {
	return func(s *Service) {
		s.auditLog = repo
	}
}

func WithMetrics(m *metrics.OrderMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIdempotencyCache makes CreateOrder replay the original order for a
// repeated idempotency key until ttl elapses.
func WithIdempotencyCache(c cache.Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.idempotency = c
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithStrictPlans rejects unknown plans with domain.ErrInvalidPlan instead
// of pricing them as the default plan.
func WithStrictPlans(strict bool) ServiceOption {
	return func(s *Service) {
		s.strictPlans = strict
	}
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(fn func(prefix string) string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(store *Store, clk clock.Clock, opts ...ServiceOption) *Service {
	svc := &Service{
		store:          store,
		clock:          clk,
		verifier:       paymentservice.NewSimulator(),
		publisher:      events.NopPublisher{},
		idempotencyTTL: defaultIdempotencyTTL,
		newID:          newToken,
		sideEffects:    make(chan sideEffect, sideEffectBacklog),
	}
	for _, opt := range opts {
		opt(svc)
	}
	go svc.runSideEffects()
	return svc
}

type CreateOrderInput struct {
	Plan           string
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order   domain.Order
	Created bool
}

// CreateOrder registers a new order for the plan. The plan label is stored
// as given; a plan missing from the price table, including "", is priced as
// the default plan unless strict plans are enabled.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()

	plan := in.Plan
	amount, known := domain.Price(plan)
	if !known && s.strictPlans {
		return CreateOrderResult{}, domain.ErrInvalidPlan
	}
	span.SetAttributes(attribute.String("order.plan", plan), attribute.Bool("order.plan_known", known))

	var idemKey string
	if in.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = s.idempotency.GenerateKey("create_order", in.IdempotencyKey)
		s.idempotencyMu.Lock()
		defer s.idempotencyMu.Unlock()
		if existing, ok := s.replay(ctx, idemKey); ok {
			if existing.Plan != plan {
				return CreateOrderResult{}, domain.ErrIdempotencyConflict
			}
			return CreateOrderResult{Order: existing, Created: false}, nil
		}
	}

	order := domain.Order{
		ID:        s.newID(orderIDPrefix),
		Plan:      plan,
		Amount:    amount,
		Status:    domain.StatusCreated,
		CreatedAt: s.clock.Now(),
	}

	if err := s.commit(ctx, events.TypeOrderCreated, func() (domain.Order, error) {
		return order, s.store.Insert(order)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert order")
		slog.ErrorContext(ctx, "order insert failed", "order_id", order.ID, "error", err)
		return CreateOrderResult{}, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	if idemKey != "" {
		if err := s.idempotency.Set(ctx, idemKey, order.ID, s.idempotencyTTL); err != nil {
			slog.WarnContext(ctx, "failed to store idempotency key", "order_id", order.ID, "error", err)
		}
	}

	metricPlan := plan
	if !known {
		metricPlan = "other"
	}
	s.metrics.OrderCreated(metricPlan)
	slog.InfoContext(ctx, "order created", "order_id", order.ID, "plan", order.Plan, "amount", order.Amount)
	return CreateOrderResult{Order: order, Created: true}, nil
}

type VerifyPaymentInput struct {
	OrderID   string
	PaymentID string
	Signature string
}

type VerifyPaymentResult struct {
	Order       domain.Order
	PaymentID   string
	AlreadyPaid bool
}

// VerifyPayment marks the order paid. Verifying a paid order again returns
// the payment recorded the first time and changes nothing.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (VerifyPaymentResult, error) {
	ctx, span := tracer.Start(ctx, "orders.VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", in.OrderID))

	order, ok := s.store.FindByID(in.OrderID)
	if !ok {
		s.metrics.VerificationFailed("not_found")
		slog.InfoContext(ctx, "verify payment for unknown order", "order_id", in.OrderID)
		return VerifyPaymentResult{}, domain.ErrOrderNotFound
	}
	if order.IsPaid() {
		return VerifyPaymentResult{Order: order, PaymentID: order.PaymentID, AlreadyPaid: true}, nil
	}

	paymentID := in.PaymentID
	if paymentID == "" {
		paymentID = s.newID(paymentIDPrefix)
	}

	var (
		updated   domain.Order
		verifyErr error
	)
	saga := coordinator.NewOrchestrator(order.ID,
		coordinator.NewStep("verify_payment",
			func(ctx context.Context) error {
				verifyErr = s.verifier.Verify(ctx, paymentservice.Verification{
					OrderID:   order.ID,
					PaymentID: paymentID,
					Signature: in.Signature,
					Amount:    order.Amount,
				})
				return verifyErr
			},
			func(ctx context.Context) error {
				// Another verification may have committed this same payment.
				if current, ok := s.store.FindByID(order.ID); ok && current.PaymentID == paymentID {
					return nil
				}
				return s.verifier.Void(ctx, order.ID, paymentID)
			},
		),
		coordinator.NewStep("mark_paid",
			func(ctx context.Context) error {
				return s.commit(ctx, events.TypeOrderPaid, func() (domain.Order, error) {
					var err error
					updated, err = s.store.Mutate(order.ID, func(o *domain.Order) error {
						return o.MarkPaid(paymentID, s.clock.Now())
					})
					return updated, err
				})
			},
			nil,
		),
	)

	err := saga.Start(ctx)
	switch {
	case err == nil:
	case verifyErr != nil:
		s.metrics.VerificationFailed("rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment rejected")
		return VerifyPaymentResult{}, fmt.Errorf("%w: %v", domain.ErrPaymentRejected, verifyErr)
	case errors.Is(err, domain.ErrOrderAlreadyPaid):
		// A concurrent verification won; report its payment.
		return VerifyPaymentResult{Order: updated, PaymentID: updated.PaymentID, AlreadyPaid: true}, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark paid")
		return VerifyPaymentResult{}, fmt.Errorf("verify payment: %w", err)
	}

	s.metrics.PaymentVerified()
	slog.InfoContext(ctx, "order paid", "order_id", updated.ID, "payment_id", updated.PaymentID)
	return VerifyPaymentResult{Order: updated, PaymentID: updated.PaymentID}, nil
}

// ListOrders returns every order, oldest first.
func (s *Service) ListOrders(ctx context.Context) []domain.Order {
	_, span := tracer.Start(ctx, "orders.ListOrders")
	defer span.End()

	orders := s.store.ListAll()
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	_, span := tracer.Start(ctx, "orders.GetOrder")
	defer span.End()

	order, ok := s.store.FindByID(id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// Wait blocks until queued event publishing and audit writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) replay(ctx context.Context, key string) (domain.Order, bool) {
	orderID, err := s.idempotency.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "idempotency lookup failed", "error", err)
		return domain.Order{}, false
	}
	if orderID == "" {
		return domain.Order{}, false
	}
	return s.store.FindByID(orderID)
}

// commit applies write and, when it succeeds, queues the transition's
// side effects before any later write can queue its own.
func (s *Service) commit(ctx context.Context, eventType string, write func() (domain.Order, error)) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	order, err := write()
	if err != nil {
		return err
	}
	s.pending.Add(1)
	s.sideEffects <- sideEffect{
		ctx:       context.WithoutCancel(ctx),
		order:     order,
		eventType: eventType,
		at:        s.clock.Now(),
	}
	return nil
}

// runSideEffects appends each transition to the audit log and publishes it,
// one at a time in commit order, detached from the request.
func (s *Service) runSideEffects() {
	for fx := range s.sideEffects {
		s.applySideEffect(fx)
		s.pending.Done()
	}
}

func (s *Service) applySideEffect(fx sideEffect) {
	ctx, order := fx.ctx, fx.order

	if s.auditLog != nil {
		if err := s.auditLog.Save(ctx, orderlog.NewEntry(ctx, order, fx.at)); err != nil {
			slog.ErrorContext(ctx, "failed to append order log", "order_id", order.ID, "error", err)
		}
	}

	err := s.publisher.Publish(ctx, events.Event{
		Type:       fx.eventType,
		OrderID:    order.ID,
		Plan:       order.Plan,
		Amount:     order.Amount,
		Status:     string(order.Status),
		PaymentID:  order.PaymentID,
		OccurredAt: fx.at,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish order event",
			"order_id", order.ID,
			"event", fx.eventType,
			"error", err,
		)
	}
}
