package domain

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateOrderID    = errors.New("order id collision")
	ErrOrderAlreadyPaid    = errors.New("order already paid")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidPlan         = errors.New("invalid plan")
	ErrPaymentRejected     = errors.New("payment verification failed")
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different plan")
)
