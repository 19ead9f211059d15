package domain

import "time"

// Plan is a membership tier. Order.Plan keeps whatever label the caller sent,
// so it is not guaranteed to be one of the known plans below.
type Plan string

const (
	PlanStudent    Plan = "student"
	PlanIndividual Plan = "individual"
	PlanFamily     Plan = "family"

	DefaultPlan = PlanStudent
)

// prices are in minor currency units (paise).
var prices = map[Plan]int64{
	PlanStudent:    39900,
	PlanIndividual: 69900,
	PlanFamily:     99900,
}

// Price returns the amount for plan and whether the plan is known.
// Unknown plans are priced as DefaultPlan.
func Price(plan string) (int64, bool) {
	amount, ok := prices[Plan(plan)]
	if !ok {
		return prices[DefaultPlan], false
	}
	return amount, true
}

// Plans lists the known plans in price order.
func Plans() []Plan {
	return []Plan{PlanStudent, PlanIndividual, PlanFamily}
}

type OrderStatus string

const (
	StatusCreated OrderStatus = "created"
	StatusPaid    OrderStatus = "paid"
)

type Order struct {
	ID        string
	Plan      string
	Amount    int64
	Status    OrderStatus
	CreatedAt time.Time

	// PaymentID and VerifiedAt are zero until the order is paid.
	PaymentID  string
	VerifiedAt time.Time
}

func (o Order) IsPaid() bool {
	return o.Status == StatusPaid
}

// MarkPaid moves a created order to paid. It returns ErrOrderAlreadyPaid
// without touching the order when the transition already happened.
func (o *Order) MarkPaid(paymentID string, at time.Time) error {
	if o.Status == StatusPaid {
		return ErrOrderAlreadyPaid
	}
	if o.Status != StatusCreated {
		return ErrInvalidTransition
	}
	o.Status = StatusPaid
	o.PaymentID = paymentID
	o.VerifiedAt = at
	return nil
}
