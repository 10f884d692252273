package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vendora-market/vendora-backend/api/routes"
	checkoutsvc "github.com/vendora-market/vendora-backend/internal/checkout"
	"github.com/vendora-market/vendora-backend/internal/commission"
	"github.com/vendora-market/vendora-backend/internal/discounts"
	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/internal/payments"
	"github.com/vendora-market/vendora-backend/internal/ratelimit"
	"github.com/vendora-market/vendora-backend/internal/reconcile"
	paymentwebhook "github.com/vendora-market/vendora-backend/internal/webhooks/payment"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/db"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/metrics"
	"github.com/vendora-market/vendora-backend/pkg/migrate"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
	"github.com/vendora-market/vendora-backend/pkg/redis"
	"github.com/vendora-market/vendora-backend/pkg/square"
)

const webhookIdempotencyTTL = 24 * time.Hour

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
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	if err != nil {
		logg.Error(context.Background(), "invalid checkout currency", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Tx:            dbClient,
		OrdersRepo:    ordersRepo,
		Catalog:       orders.NewCatalogRepository(dbClient.DB()),
		Outbox:        outboxService,
		Currency:      currency,
		AffiliateRate: cfg.Commission.AffiliateRate,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Tx:             dbClient,
		Repo:           paymentsRepo,
		Groups:         ordersRepo,
		Provider:       payments.NewSquareProvider(squareClient),
		Outbox:         outboxService,
		Logger:         logg,
		Currency:       currency,
		MaxAttempts:    cfg.Gateway.MaxAttempts,
		InitialBackoff: cfg.Gateway.InitialBackoff,
		MaxBackoff:     cfg.Gateway.MaxBackoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	discountsService, err := discounts.NewService(discounts.ServiceParams{
		Tx:         dbClient,
		Repo:       discounts.NewRepository(dbClient.DB()),
		OrdersRepo: ordersRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create discounts service", err)
		os.Exit(1)
	}

	commissionService, err := commission.NewService(commission.ServiceParams{
		Repo:         commission.NewRepository(dbClient.DB()),
		Attributions: ordersRepo,
		Outbox:       outboxService,
		Logger:       logg,
		PlatformRate: cfg.Commission.PlatformRate,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Tx:           dbClient,
		Repo:         reconcile.NewRepository(dbClient.DB()),
		Outbox:       outboxService,
		Poller:       payments.NewSquareProvider(squareClient),
		Logger:       logg,
		DefaultHours: cfg.Reconcile.HoursDefault,
		BatchSize:    cfg.Reconcile.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	webhookService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Tx:           dbClient,
		Transactions: paymentsRepo,
		OrdersRepo:   ordersRepo,
		Orders:       ordersService,
		Commission:   commissionService,
		Outbox:       outboxService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	limiter, err := ratelimit.NewLimiter(ratelimit.LimiterParams{
		Store:    redisClient,
		Logger:   logg,
		Metrics:  metrics.NewRateLimitMetrics(prometheus.DefaultRegisterer),
		Policies: ratelimit.PoliciesFromConfig(cfg.RateLimit),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rate limiter", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			limiter,
			checkoutService,
			paymentsService,
			ordersService,
			discountsService,
			reconcileService,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
