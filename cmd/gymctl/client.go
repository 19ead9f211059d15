package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jcmexdev/gym-membership/internal/api-gateway/infra/httpx"
	"github.com/jcmexdev/gym-membership/internal/pkg/interceptors/constants"
)

// apiClient talks to the gateway's JSON API using its own DTOs.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateOrder sends plan as given; a nil plan lets the server pick the default.
func (c *apiClient) CreateOrder(ctx context.Context, plan *string, idempotencyKey string) (httpx.CreateOrderResponse, error) {
	var out httpx.CreateOrderResponse
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[constants.HeaderIdempotencyKey] = idempotencyKey
	}
	err := c.do(ctx, http.MethodPost, "/api/create_order", httpx.CreateOrderRequest{Plan: plan}, headers, &out)
	return out, err
}

func (c *apiClient) VerifyPayment(ctx context.Context, orderID, paymentID string) (httpx.VerifyPaymentResponse, error) {
	var out httpx.VerifyPaymentResponse
	err := c.do(ctx, http.MethodPost, "/api/verify_payment", httpx.VerifyPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
	}, nil, &out)
	return out, err
}

func (c *apiClient) ListOrders(ctx context.Context) ([]httpx.OrderResponse, error) {
	var out httpx.ListOrdersResponse
	if err := c.do(ctx, http.MethodGet, "/api/subscriptions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Subscriptions, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr httpx.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s (%d)", method, path, apiErr.Error, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
