package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rtwroastery/roastery-backend/api/routes"
	"github.com/rtwroastery/roastery-backend/internal/auth"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/catalog"
	"github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/internal/shipping"
	"github.com/rtwroastery/roastery-backend/internal/subscriptions"
	"github.com/rtwroastery/roastery-backend/internal/users"
	stripewebhook "github.com/rtwroastery/roastery-backend/internal/webhooks/stripe"
	"github.com/rtwroastery/roastery-backend/pkg/auth/session"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/db"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	"github.com/rtwroastery/roastery-backend/pkg/metrics"
	"github.com/rtwroastery/roastery-backend/pkg/migrate"
	"github.com/rtwroastery/roastery-backend/pkg/redis"
	pkgstripe "github.com/rtwroastery/roastery-backend/pkg/stripe"
)

const (
	shutdownTimeout    = 15 * time.Second
	webhookLedgerScope = "stripe-webhook"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gdb := dbClient.DB()
	productRepo := catalog.NewRepository(gdb)
	blendRepo := blends.NewRepository(gdb)
	rateRepo := shipping.NewRepository(gdb)
	orderRepo := orders.NewRepository(gdb)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(gdb),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	requireResource(ctx, logg, "auth service", err)

	catalogService, err := catalog.NewService(productRepo)
	requireResource(ctx, logg, "catalog service", err)

	shippingService, err := shipping.NewService(rateRepo)
	requireResource(ctx, logg, "shipping service", err)

	blendService, err := blends.NewService(blendRepo)
	requireResource(ctx, logg, "blend service", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(gdb),
		Products: productRepo,
		Blends:   blendRepo,
	})
	requireResource(ctx, logg, "cart service", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Products: productRepo,
		Blends:   blendRepo,
		Rates:    rateRepo,
		Logger:   logg,
	})
	requireResource(ctx, logg, "orders service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subscriptions.NewRepository(gdb),
		Blends: blendRepo,
		Logger: logg,
	})
	requireResource(ctx, logg, "subscriptions service", err)

	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	requireResource(ctx, logg, "checkout currency", err)

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe client", err)
	gateway, err := pkgstripe.NewGateway(stripeClient)
	requireResource(ctx, logg, "stripe gateway", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(gdb),
		Orders:   orderRepo,
		Gateway:  gateway,
		Tx:       dbClient,
		Cache:    redisClient,
		Metrics:  checkoutMetrics,
		Logger:   logg,
		Currency: currency,
		CacheTTL: cfg.Checkout.StatusCacheTTL,
	})
	requireResource(ctx, logg, "payments service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: paymentService, Logger: logg})
	requireResource(ctx, logg, "stripe webhook service", err)
	webhookLedger, err := stripewebhook.NewEventLedger(redisClient, webhookLedgerScope, cfg.Checkout.WebhookIdempotentTTL)
	requireResource(ctx, logg, "stripe webhook ledger", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   id,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			registry,
			routes.Services{
				Auth:          authService,
				Catalog:       catalogService,
				Shipping:      shippingService,
				Blends:        blendService,
				Cart:          cartService,
				Orders:        orderService,
				Payments:      paymentService,
				Subscriptions: subscriptionService,
			},
			routes.StripeWebhook{
				Service:  webhookService,
				Verifier: stripeClient,
				Ledger:   webhookLedger,
			},
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "failed to initialize", err)
	os.Exit(1)
}
