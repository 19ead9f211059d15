package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gym-membership/internal/order-service/domain"
	"github.com/jcmexdev/gym-membership/internal/order-service/orderlog"
	paymentservice "github.com/jcmexdev/gym-membership/internal/payment-service/app"
	"github.com/jcmexdev/gym-membership/internal/pkg/cache"
	"github.com/jcmexdev/gym-membership/internal/pkg/clock"
	"github.com/jcmexdev/gym-membership/internal/pkg/events"
	"github.com/jcmexdev/gym-membership/internal/pkg/metrics"
)

var testNow = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

func newTestService(opts ...ServiceOption) (*Service, *Store) {
	store := NewStore()
	return NewService(store, clock.NewFixed(testNow), opts...), store
}

func TestService_CreateOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		plan      string
		wantPlan  string
		wantPrice int64
	}{
		{name: "student", plan: "student", wantPlan: "student", wantPrice: 39900},
		{name: "individual", plan: "individual", wantPlan: "individual", wantPrice: 69900},
		{name: "family", plan: "family", wantPlan: "family", wantPrice: 99900},
		{name: "unknown plan keeps label", plan: "unknown_plan", wantPlan: "unknown_plan", wantPrice: 39900},
		{name: "empty plan keeps label at default price", plan: "", wantPlan: "", wantPrice: 39900},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store := newTestService()

			res, err := svc.CreateOrder(context.Background(), CreateOrderInput{Plan: tt.plan})
			require.NoError(t, err)
			svc.Wait()

			assert.True(t, res.Created)
			assert.Equal(t, tt.wantPrice, res.Order.Amount)
			assert.Equal(t, tt.wantPlan, res.Order.Plan)
			assert.Equal(t, domain.StatusCreated, res.Order.Status)
			assert.Equal(t, testNow, res.Order.CreatedAt)
			assert.True(t, strings.HasPrefix(res.Order.ID, "order_fake_"))
			assert.Len(t, strings.TrimPrefix(res.Order.ID, "order_fake_"), 32)

			stored, ok := store.FindByID(res.Order.ID)
			require.True(t, ok)
			assert.Equal(t, res.Order, stored)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestService_CreateOrder_StrictPlans(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(WithStrictPlans(true))

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{Plan: "unknown_plan"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)
	assert.Equal(t, 0, store.Len())

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	res, err := svc.CreateOrder(context.Background(), CreateOrderInput{Plan: "family"})
	require.NoError(t, err)
	assert.Equal(t, int64(99900), res.Order.Amount)
	svc.Wait()
	assert.Equal(t, 1, store.Len())
}

func TestService_CreateOrder_IDCollisionIsNotWritten(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(WithIDGenerator(func(prefix string) string { return prefix + "fixed" }))
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{Plan: "family"})
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
	svc.Wait()

	orders := store.ListAll()
	require.Len(t, orders, 1)
	assert.Equal(t, first.Order, orders[0])
}

func TestService_CreateOrder_Idempotency(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(WithIdempotencyCache(cache.NewMemoryCache("orders"), time.Hour))
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "family", IdempotencyKey: "idem-1"})
	require.NoError(t, err)
	require.True(t, first.Created)

	again, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "family", IdempotencyKey: "idem-1"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Order.ID, again.Order.ID)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{Plan: "student", IdempotencyKey: "idem-1"})
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	other, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "family", IdempotencyKey: "idem-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Order.ID, other.Order.ID)
	svc.Wait()

	assert.Equal(t, 2, store.Len())
}

func TestService_CreateOrder_ConcurrentRetriesShareOneOrder(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(WithIdempotencyCache(cache.NewMemoryCache("orders"), time.Hour))

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CreateOrder(context.Background(), CreateOrderInput{Plan: "family", IdempotencyKey: "retry-1"})
			if err == nil {
				ids <- res.Order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)
	svc.Wait()

	var first string
	count := 0
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id)
		count++
	}
	assert.Equal(t, n, count)
	assert.Equal(t, 1, store.Len())
}

func TestService_CreateOrder_ConcurrentIDsAreDistinct(t *testing.T) {
	t.Parallel()
	svc, store := newTestService()

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CreateOrder(context.Background(), CreateOrderInput{Plan: "individual"})
			if err == nil {
				ids <- res.Order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)
	svc.Wait()

	seen := make(map[string]struct{}, n)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, store.Len())
}

func TestService_VerifyPayment(t *testing.T) {
	t.Parallel()

	t.Run("created order becomes paid with generated payment id", func(t *testing.T) {
		svc, store := newTestService()
		ctx := context.Background()
		created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
		require.NoError(t, err)

		res, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID})
		require.NoError(t, err)
		svc.Wait()

		assert.False(t, res.AlreadyPaid)
		assert.True(t, strings.HasPrefix(res.PaymentID, "pay_fake_"))
		assert.Equal(t, domain.StatusPaid, res.Order.Status)
		assert.Equal(t, testNow, res.Order.VerifiedAt)

		stored, _ := store.FindByID(created.Order.ID)
		assert.Equal(t, domain.StatusPaid, stored.Status)
		assert.Equal(t, res.PaymentID, stored.PaymentID)
	})

	t.Run("caller supplied payment id is kept", func(t *testing.T) {
		svc, _ := newTestService()
		ctx := context.Background()
		created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "family"})
		require.NoError(t, err)

		res, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID, PaymentID: "pay_123", Signature: "sig"})
		require.NoError(t, err)
		svc.Wait()
		assert.Equal(t, "pay_123", res.PaymentID)
	})

	t.Run("second verification returns first payment id", func(t *testing.T) {
		svc, store := newTestService()
		ctx := context.Background()
		created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
		require.NoError(t, err)

		first, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID})
		require.NoError(t, err)
		second, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID, PaymentID: "pay_other"})
		require.NoError(t, err)
		svc.Wait()

		assert.True(t, second.AlreadyPaid)
		assert.Equal(t, first.PaymentID, second.PaymentID)

		stored, _ := store.FindByID(created.Order.ID)
		assert.Equal(t, first.PaymentID, stored.PaymentID)
		assert.Equal(t, first.Order.VerifiedAt, stored.VerifiedAt)
	})

	t.Run("unknown order fails without mutating the store", func(t *testing.T) {
		svc, store := newTestService()
		ctx := context.Background()
		_, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
		require.NoError(t, err)
		before := store.ListAll()

		_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: "order_fake_doesnotexist"})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		svc.Wait()

		assert.Equal(t, before, store.ListAll())
	})

	t.Run("missing order id is an unknown order", func(t *testing.T) {
		svc, store := newTestService()
		ctx := context.Background()
		_, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
		require.NoError(t, err)
		before := store.ListAll()

		_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{PaymentID: "pay_1"})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		svc.Wait()

		assert.Equal(t, before, store.ListAll())
	})

	t.Run("rejected payment leaves order created", func(t *testing.T) {
		svc, store := newTestService(WithVerifier(rejectingVerifier{}))
		ctx := context.Background()
		created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
		require.NoError(t, err)

		_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID})
		assert.ErrorIs(t, err, domain.ErrPaymentRejected)
		svc.Wait()

		stored, _ := store.FindByID(created.Order.ID)
		assert.Equal(t, domain.StatusCreated, stored.Status)
		assert.Empty(t, stored.PaymentID)
	})
}

func TestService_VerifyPayment_FailedTransitionVoidsPayment(t *testing.T) {
	t.Parallel()
	verifier := &voidRecorder{Simulator: paymentservice.NewSimulator()}
	svc, store := newTestService(WithVerifier(verifier))
	require.NoError(t, store.Insert(domain.Order{ID: "order-legacy", Plan: "student", Amount: 39900, Status: "cancelled"}))

	_, err := svc.VerifyPayment(context.Background(), VerifyPaymentInput{OrderID: "order-legacy", PaymentID: "pay_1"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	svc.Wait()

	assert.Equal(t, []string{"pay_1"}, verifier.voids)
	_, recorded := verifier.Payment("pay_1")
	assert.False(t, recorded)

	stored, _ := store.FindByID("order-legacy")
	assert.Empty(t, stored.PaymentID)
}

func TestService_VerifyPayment_LosingVerificationVoidsOnlyItsPayment(t *testing.T) {
	t.Parallel()
	sim := paymentservice.NewSimulator()
	verifier := &gatedVerifier{
		Simulator: sim,
		gateID:    "pay_A",
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	svc, store := newTestService(WithVerifier(verifier))
	ctx := context.Background()
	created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
	require.NoError(t, err)

	var (
		resA VerifyPaymentResult
		errA error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		resA, errA = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID, PaymentID: "pay_A"})
	}()
	<-verifier.entered

	resB, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID, PaymentID: "pay_B"})
	require.NoError(t, err)
	assert.Equal(t, "pay_B", resB.PaymentID)

	close(verifier.release)
	<-done
	svc.Wait()

	require.NoError(t, errA)
	assert.True(t, resA.AlreadyPaid)
	assert.Equal(t, "pay_B", resA.PaymentID)

	stored, _ := store.FindByID(created.Order.ID)
	assert.Equal(t, "pay_B", stored.PaymentID)

	payments := sim.PaymentsForOrder(created.Order.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, "pay_B", payments[0].PaymentID)
}

func TestService_VerifyPayment_ConcurrentCallsAgreeOnPayment(t *testing.T) {
	t.Parallel()
	sim := paymentservice.NewSimulator()
	svc, store := newTestService(WithVerifier(sim))
	ctx := context.Background()
	created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "individual"})
	require.NoError(t, err)

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID})
			if err == nil {
				results <- res.PaymentID
			}
		}()
	}
	wg.Wait()
	close(results)
	svc.Wait()

	stored, _ := store.FindByID(created.Order.ID)
	count := 0
	for id := range results {
		assert.Equal(t, stored.PaymentID, id)
		count++
	}
	assert.Equal(t, n, count)

	payments := sim.PaymentsForOrder(created.Order.ID)
	require.Len(t, payments, 1, "losing verifications void their payments")
	assert.Equal(t, stored.PaymentID, payments[0].PaymentID)
}

func TestService_ListOrders(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	var ids []string
	for _, plan := range []string{"student", "family", "individual", "unknown_plan"} {
		res, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: plan})
		require.NoError(t, err)
		ids = append(ids, res.Order.ID)
	}
	paid, err := svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: ids[1]})
	require.NoError(t, err)
	svc.Wait()

	orders := svc.ListOrders(ctx)
	require.Len(t, orders, 4)
	for i, o := range orders {
		assert.Equal(t, ids[i], o.ID)
	}
	assert.Equal(t, domain.StatusPaid, orders[1].Status)
	assert.Equal(t, paid.PaymentID, orders[1].PaymentID)
	assert.Equal(t, domain.StatusCreated, orders[0].Status)
	assert.Equal(t, "unknown_plan", orders[3].Plan)
	assert.Equal(t, int64(39900), orders[3].Amount)
}

func TestService_GetOrder(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "family"})
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.GetOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Order, got)

	_, err = svc.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestService_SideEffects(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	audit := &recordingAuditLog{}
	reg := prometheus.NewRegistry()
	m := metrics.NewOrderMetrics(reg)
	svc, _ := newTestService(WithPublisher(pub), WithAuditLog(audit), WithMetrics(m))
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "family"})
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{Plan: "gold"})
	require.NoError(t, err)
	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID, PaymentID: "pay_1"})
	require.NoError(t, err)
	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID})
	require.NoError(t, err)
	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: "missing"})
	require.Error(t, err)
	svc.Wait()

	evts := pub.byOrder(created.Order.ID)
	require.Len(t, evts, 2, "re-verification must not publish again")
	assert.Equal(t, events.TypeOrderCreated, evts[0].Type)
	assert.Equal(t, events.TypeOrderPaid, evts[1].Type)
	assert.Len(t, pub.all(), 3)

	entries := audit.byOrder(created.Order.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].Status)
	assert.Equal(t, "paid", entries[1].Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Created.WithLabelValues("family")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Created.WithLabelValues("other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verified))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("not_found")))
}

func TestService_SideEffectsFollowCommitOrder(t *testing.T) {
	t.Parallel()
	pub := &slowCreatedPublisher{release: make(chan struct{})}
	svc, _ := newTestService(WithPublisher(pub))
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
	require.NoError(t, err)
	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID, PaymentID: "pay_1"})
	require.NoError(t, err)

	close(pub.release)
	svc.Wait()

	evts := pub.byOrder(created.Order.ID)
	require.Len(t, evts, 2)
	assert.Equal(t, events.TypeOrderCreated, evts[0].Type)
	assert.Equal(t, events.TypeOrderPaid, evts[1].Type)
}

func TestService_SideEffectFailuresDoNotFailOperations(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(
		WithPublisher(failingPublisher{}),
		WithAuditLog(&recordingAuditLog{err: errors.New("disk full")}),
	)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{Plan: "student"})
	require.NoError(t, err)
	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{OrderID: created.Order.ID})
	require.NoError(t, err)
	svc.Wait()

	stored, _ := store.FindByID(created.Order.ID)
	assert.True(t, stored.IsPaid())
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context, paymentservice.Verification) error {
	return errors.New("gateway declined")
}

func (rejectingVerifier) Void(context.Context, string, string) error { return nil }

// voidRecorder wraps the simulator and records compensations.
type voidRecorder struct {
	*paymentservice.Simulator
	mu    sync.Mutex
	voids []string
}

func (v *voidRecorder) Void(ctx context.Context, orderID, paymentID string) error {
	v.mu.Lock()
	v.voids = append(v.voids, paymentID)
	v.mu.Unlock()
	return v.Simulator.Void(ctx, orderID, paymentID)
}

// gatedVerifier records the payment, then blocks the verification of gateID
// until release is closed.
type gatedVerifier struct {
	*paymentservice.Simulator
	gateID  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedVerifier) Verify(ctx context.Context, v paymentservice.Verification) error {
	err := g.Simulator.Verify(ctx, v)
	if v.PaymentID == g.gateID {
		close(g.entered)
		<-g.release
	}
	return err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func (p *recordingPublisher) byOrder(id string) []events.Event {
	var out []events.Event
	for _, e := range p.all() {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out
}

// slowCreatedPublisher holds every order.created event until release is
// closed.
type slowCreatedPublisher struct {
	recordingPublisher
	release chan struct{}
}

func (p *slowCreatedPublisher) Publish(ctx context.Context, e events.Event) error {
	if e.Type == events.TypeOrderCreated {
		<-p.release
	}
	return p.recordingPublisher.Publish(ctx, e)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return fmt.Errorf("broker unavailable")
}

type recordingAuditLog struct {
	mu      sync.Mutex
	entries []orderlog.Entry
	err     error
}

func (r *recordingAuditLog) Save(_ context.Context, e *orderlog.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *recordingAuditLog) ListByOrder(_ context.Context, id string) ([]orderlog.Entry, error) {
	return r.byOrder(id), nil
}

func (r *recordingAuditLog) byOrder(id string) []orderlog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orderlog.Entry
	for _, e := range r.entries {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out
}
