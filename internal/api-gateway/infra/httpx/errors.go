package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	accountdomain "github.com/jcmexdev/gym-membership/internal/account-service/domain"
	orderdomain "github.com/jcmexdev/gym-membership/internal/order-service/domain"
)

const (
	msgInvalidBody   = "invalid request body"
	msgOrderNotFound = "Order not found"
	msgInternal      = "internal error"
)

var errEmptyBody = errors.New("empty body")

// decodeJSON decodes the request body into v. An empty body is reported as
// errEmptyBody so callers can choose to treat it as defaults.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// orderErrorStatus maps order errors to a status and client message.
// notFound is the status used for unknown orders on the calling route.
func orderErrorStatus(err error, notFound int) (int, string) {
	switch {
	case errors.Is(err, orderdomain.ErrOrderNotFound):
		return notFound, msgOrderNotFound
	case errors.Is(err, orderdomain.ErrInvalidPlan):
		return http.StatusBadRequest, "Invalid plan"
	case errors.Is(err, orderdomain.ErrPaymentRejected):
		return http.StatusBadRequest, "Payment verification failed"
	case errors.Is(err, orderdomain.ErrIdempotencyConflict):
		return http.StatusConflict, "Idempotency-Key was already used for a different plan"
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func accountErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, accountdomain.ErrMissingSignupFields):
		return http.StatusBadRequest, "Missing required fields"
	case errors.Is(err, accountdomain.ErrUserExists):
		return http.StatusConflict, "User already exists!"
	case errors.Is(err, accountdomain.ErrMissingCredentials):
		return http.StatusBadRequest, "Missing email or password"
	case errors.Is(err, accountdomain.ErrIncorrectPassword):
		return http.StatusUnauthorized, "Incorrect password"
	case errors.Is(err, accountdomain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, accountdomain.ErrEmailRequired):
		return http.StatusBadRequest, "Missing email"
	case errors.Is(err, accountdomain.ErrMissingPlanOrMethod):
		return http.StatusBadRequest, "Missing plan or payment method"
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}
