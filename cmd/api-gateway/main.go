package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	accountsqlite "github.com/jcmexdev/gym-membership/internal/account-service/adapters/sqlite"
	accountapp "github.com/jcmexdev/gym-membership/internal/account-service/app"
	"github.com/jcmexdev/gym-membership/internal/api-gateway/infra/httpx"
	orderapp "github.com/jcmexdev/gym-membership/internal/order-service/app"
	orderlogsqlite "github.com/jcmexdev/gym-membership/internal/order-service/orderlog/sqlite"
	paymentservice "github.com/jcmexdev/gym-membership/internal/payment-service/app"
	"github.com/jcmexdev/gym-membership/internal/pkg/cache"
	"github.com/jcmexdev/gym-membership/internal/pkg/clock"
	"github.com/jcmexdev/gym-membership/internal/pkg/config"
	"github.com/jcmexdev/gym-membership/internal/pkg/database"
	"github.com/jcmexdev/gym-membership/internal/pkg/events"
	"github.com/jcmexdev/gym-membership/internal/pkg/interceptors"
	"github.com/jcmexdev/gym-membership/internal/pkg/metrics"
	"github.com/jcmexdev/gym-membership/internal/pkg/telemetry"
)

const orderServiceName = "gym.orders.v1.Orders"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.MigrateUp(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	idempotency := newIdempotencyCache(ctx, cfg.RedisAddr)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				slog.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = kp
		slog.Info("publishing order events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clk := clock.NewSystem()
	orders := orderapp.NewService(orderapp.NewStore(), clk,
		orderapp.WithVerifier(paymentservice.NewSimulator()),
		orderapp.WithPublisher(publisher),
		orderapp.WithAuditLog(orderlogsqlite.NewRepository(db)),
		orderapp.WithMetrics(metrics.NewOrderMetrics(reg)),
		orderapp.WithIdempotencyCache(idempotency, cfg.IdempotencyTTL),
		orderapp.WithStrictPlans(cfg.StrictPlans),
	)
	accounts := accountapp.NewService(accountsqlite.NewRepository(db), clk)

	router := httpx.NewRouter(httpx.NewHandler(orders, accounts), httpx.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		Metrics:        metrics.NewServerMetrics(reg, "api"),
		MetricsHandler: metrics.Handler(reg),
		Readiness: map[string]httpx.ReadinessCheck{
			"database": db.PingContext,
		},
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RequestIDServerInterceptor(),
			interceptors.LoggingServerInterceptor(),
		),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(orderServiceName, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)
	go func() {
		slog.Info("gRPC health server running", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		slog.Info("HTTP API running", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		slog.Error("server failed", "error", err)
	}

	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	// Let pending audit writes and events finish before the database closes.
	orders.Wait()
}

// newIdempotencyCache uses Redis when it answers and an in-process cache
// otherwise.
func newIdempotencyCache(ctx context.Context, redisAddr string) cache.Cache {
	if redisAddr == "" {
		return cache.NewMemoryCache("orders")
	}

	c := cache.NewRedisCache(redisAddr, "orders")
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, c); err != nil {
		slog.Warn("redis unavailable, using in-memory idempotency cache", "addr", redisAddr, "error", err)
		return cache.NewMemoryCache("orders")
	}
	slog.Info("using redis idempotency cache", "addr", redisAddr)
	return c
}
