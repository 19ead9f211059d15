package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountapp "github.com/jcmexdev/gym-membership/internal/account-service/app"
	"github.com/jcmexdev/gym-membership/internal/api-gateway/core/ports"
	orderapp "github.com/jcmexdev/gym-membership/internal/order-service/app"
	"github.com/jcmexdev/gym-membership/internal/order-service/domain"
	"github.com/jcmexdev/gym-membership/internal/pkg/interceptors/constants"
)

const msgPaymentVerified = "Payment verified (demo)."

// Handler serves the membership JSON API.
type Handler struct {
	orders   ports.OrderService
	accounts ports.AccountService
}

func NewHandler(orders ports.OrderService, accounts ports.AccountService) *Handler {
	return &Handler{
		orders:   orders,
		accounts: accounts,
	}
}

// CreateOrder opens an order for the requested plan. An empty body or a
// body without "plan" orders the default plan.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	plan := string(domain.DefaultPlan)
	if req.Plan != nil {
		plan = *req.Plan
	}

	res, err := h.orders.CreateOrder(r.Context(), orderapp.CreateOrderInput{
		Plan:           plan,
		IdempotencyKey: r.Header.Get(constants.HeaderIdempotencyKey),
	})
	if err != nil {
		status, msg := orderErrorStatus(err, http.StatusBadRequest)
		writeServiceError(w, r, status, msg, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateOrderResponse{
		OK:      true,
		OrderID: res.Order.ID,
		Amount:  res.Order.Amount,
	})
}

// VerifyPayment accepts the client's payment confirmation for an order.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.orders.VerifyPayment(r.Context(), orderapp.VerifyPaymentInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		status, msg := orderErrorStatus(err, http.StatusBadRequest)
		writeServiceError(w, r, status, msg, err)
		return
	}

	if res.AlreadyPaid {
		slog.InfoContext(r.Context(), "payment already verified", "order_id", req.OrderID)
	}
	writeJSON(w, http.StatusOK, VerifyPaymentResponse{
		OK:        true,
		Message:   msgPaymentVerified,
		PaymentID: res.PaymentID,
	})
}

// ListSubscriptions returns every order in creation order.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	orders := h.orders.ListOrders(r.Context())

	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, mapOrderToResponse(o))
	}
	writeJSON(w, http.StatusOK, ListOrdersResponse{OK: true, Subscriptions: out})
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, msg := orderErrorStatus(err, http.StatusNotFound)
		writeServiceError(w, r, status, msg, err)
		return
	}
	writeJSON(w, http.StatusOK, GetOrderResponse{OK: true, Order: mapOrderToResponse(order)})
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.accounts.SignUp(r.Context(), accountapp.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		status, msg := accountErrorStatus(err)
		writeServiceError(w, r, status, msg, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Signup successful!", User: user.Name})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status, msg := accountErrorStatus(err)
		writeServiceError(w, r, status, msg, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Login successful!", User: user.Name})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	created, err := h.accounts.Subscribe(r.Context(), req.Email)
	if err != nil {
		status, msg := accountErrorStatus(err)
		writeServiceError(w, r, status, msg, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Already subscribed!"})
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Subscribed successfully!"})
}

func (h *Handler) ConfirmPlan(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPlanRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	msg, err := h.accounts.ConfirmPlan(r.Context(), req.Plan, req.PaymentMethod)
	if err != nil {
		status, errMsg := accountErrorStatus(err)
		writeServiceError(w, r, status, errMsg, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func mapOrderToResponse(o domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderID:   o.ID,
		Plan:      o.Plan,
		Amount:    o.Amount,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.Unix(),
		PaymentID: o.PaymentID,
	}
	if !o.VerifiedAt.IsZero() {
		resp.VerifiedAt = o.VerifiedAt.Unix()
	}
	return resp
}
