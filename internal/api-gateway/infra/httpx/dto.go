package httpx

// CreateOrderRequest leaves Plan nil when the key is absent, which orders
// the default plan. An explicit "" is passed through as the label.
type CreateOrderRequest struct {
	Plan *string `json:"plan,omitempty"`
}

type CreateOrderResponse struct {
	OK      bool   `json:"ok"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type VerifyPaymentResponse struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	PaymentID string `json:"payment_id"`
}

// OrderResponse describes an order. Timestamps are unix seconds; payment_id
// and verified_at are present only once the order is paid.
type OrderResponse struct {
	OrderID    string `json:"order_id"`
	Plan       string `json:"plan"`
	Amount     int64  `json:"amount"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
	PaymentID  string `json:"payment_id,omitempty"`
	VerifiedAt int64  `json:"verified_at,omitempty"`
}

type ListOrdersResponse struct {
	OK            bool            `json:"ok"`
	Subscriptions []OrderResponse `json:"subscriptions"`
}

type GetOrderResponse struct {
	OK    bool          `json:"ok"`
	Order OrderResponse `json:"order"`
}

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SubscribeRequest struct {
	Email string `json:"email"`
}

type ConfirmPlanRequest struct {
	Plan          string `json:"plan"`
	PaymentMethod string `json:"payment_method"`
}

type MessageResponse struct {
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
