package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freshmarket/grocery-backend/api/controllers"
	"github.com/freshmarket/grocery-backend/api/routes"
	"github.com/freshmarket/grocery-backend/internal/auth"
	"github.com/freshmarket/grocery-backend/internal/inventory"
	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/internal/payments"
	"github.com/freshmarket/grocery-backend/internal/requests"
	"github.com/freshmarket/grocery-backend/internal/seed"
	"github.com/freshmarket/grocery-backend/internal/tracking"
	"github.com/freshmarket/grocery-backend/internal/users"
	"github.com/freshmarket/grocery-backend/internal/vendors"
	gatewaywebhook "github.com/freshmarket/grocery-backend/internal/webhooks/gateway"
	"github.com/freshmarket/grocery-backend/pkg/auth/session"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/gateway"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"github.com/freshmarket/grocery-backend/pkg/migrate"
	"github.com/freshmarket/grocery-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/multierr"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	if cfg.FeatureFlags.AutoSeed {
		entries, err := seed.Run(ctx, dbClient, seed.Options{Seed: cfg.Seed, Password: cfg.Password}, logg)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "entries", len(entries)), "seed data applied")
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.NewDomain(reg)
	httpMetrics := metrics.NewHTTP(reg)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	svc, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager, domainMetrics)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, svc, sessionManager, redisClient,
			map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
			routes.Observability{HTTP: httpMetrics, Gatherer: reg},
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"gateway_enabled": cfg.Payments.GatewayEnabled(),
	})
	logg.Info(logCtx, "starting api server")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	m *metrics.Domain,
) (routes.Services, error) {
	gormDB := dbClient.DB()
	inventoryRepo := inventory.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	vendorsRepo := vendors.NewRepository(gormDB)

	var gatewayClient orders.Gateway
	if cfg.Payments.GatewayEnabled() {
		client, err := gateway.NewClient(cfg.Payments, gateway.WithMetrics(m))
		if err != nil {
			return routes.Services{}, err
		}
		gatewayClient = client
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(gormDB),
		Verifications:  vendorsRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	inventoryService, err := inventory.NewService(inventoryRepo, dbClient, m, cfg.Inventory.LowStockThreshold)
	if err != nil {
		return routes.Services{}, err
	}

	ordersService, err := orders.NewService(ordersRepo, inventoryRepo, dbClient, gatewayClient, orders.Options{
		Currency:          cfg.Payments.NormalizedCurrency(),
		AllowTestPayments: cfg.Payments.AllowTestPayments,
		ReserveStock:      cfg.Inventory.CheckoutReserveStock,
	}, logg, m)
	if err != nil {
		return routes.Services{}, err
	}

	trackingService, err := tracking.NewService(ordersRepo, dbClient, logg)
	if err != nil {
		return routes.Services{}, err
	}

	settler, err := payments.NewSettler(ordersRepo, dbClient, logg, m)
	if err != nil {
		return routes.Services{}, err
	}
	verifier, err := payments.NewVerifier(cfg.Payments.KeySecret, settler, m)
	if err != nil {
		return routes.Services{}, err
	}

	upiIssuer, err := payments.NewUPIIssuer(ordersRepo, cfg.Payments)
	if err != nil {
		return routes.Services{}, err
	}

	webhookService, err := gatewaywebhook.NewService(settler, logg, m)
	if err != nil {
		return routes.Services{}, err
	}
	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookDedupeTTL, gatewaywebhook.GuardScope)
	if err != nil {
		return routes.Services{}, err
	}

	vendorService, err := vendors.NewService(vendorsRepo, dbClient, cfg.Password, logg)
	if err != nil {
		return routes.Services{}, err
	}

	requestService, err := requests.NewService(requests.NewRepository(gormDB), inventoryRepo, logg)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:         authService,
		Register:     registerService,
		Inventory:    inventoryService,
		Orders:       ordersService,
		Tracking:     trackingService,
		Verifier:     verifier,
		UPI:          upiIssuer,
		Webhook:      webhookService,
		WebhookGuard: webhookGuard,
		Vendors:      vendorService,
		Requests:     requestService,
	}, nil
}
