package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jcmexdev/gym-membership/internal/api-gateway/infra/httpx/middlewares"
	"github.com/jcmexdev/gym-membership/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/gym-membership/internal/pkg/metrics"
)

type RouterConfig struct {
	CORSOrigins []string
	// Metrics and MetricsHandler are optional.
	Metrics        *metrics.ServerMetrics
	MetricsHandler http.Handler
	Readiness      map[string]ReadinessCheck
}

func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", constants.HeaderIdempotencyKey, constants.HeaderXRequestID},
		ExposedHeaders: []string{constants.HeaderXRequestID},
		MaxAge:         300,
	}))
	if cfg.Metrics != nil {
		r.Use(middlewares.Metrics(cfg.Metrics))
	}

	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(cfg.Readiness))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/create_order", handler.CreateOrder)
		r.Post("/verify_payment", handler.VerifyPayment)
		r.Get("/subscriptions", handler.ListSubscriptions)
		r.Get("/orders/{id}", handler.GetOrderByID)

		r.Post("/signup", handler.SignUp)
		r.Post("/login", handler.Login)
		r.Post("/subscribe", handler.Subscribe)
		r.Post("/plans", handler.ConfirmPlan)
	})
	return r
}
