package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cron"
	"github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/internal/subscriptions"
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
	reconcileBatch = 100
	deliveryBatch  = 200
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma separated job names for -once (default: all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	requireResource(ctx, logg, "checkout currency", err)

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe client", err)
	gateway, err := pkgstripe.NewGateway(stripeClient)
	requireResource(ctx, logg, "stripe gateway", err)

	gdb := dbClient.DB()
	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(gdb),
		Orders:   orders.NewRepository(gdb),
		Gateway:  gateway,
		Tx:       dbClient,
		Cache:    redisClient,
		Metrics:  metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
		Currency: currency,
		CacheTTL: cfg.Checkout.StatusCacheTTL,
	})
	requireResource(ctx, logg, "payments service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subscriptions.NewRepository(gdb),
		Blends: blends.NewRepository(gdb),
		Logger: logg,
	})
	requireResource(ctx, logg, "subscriptions service", err)

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:   logg,
		Payments: paymentService,
		Grace:    cfg.Checkout.ReconcileGrace,
		Limit:    reconcileBatch,
	})
	requireResource(ctx, logg, "payment reconcile job", err)

	deliveryJob, err := cron.NewSubscriptionDeliveryJob(cron.SubscriptionDeliveryJobParams{
		Logger:        logg,
		Subscriptions: subscriptionService,
		Batch:         deliveryBatch,
	})
	requireResource(ctx, logg, "subscription delivery job", err)

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+env), 0)
	requireResource(ctx, logg, "cron lock", err)

	registry, err := cron.NewRegistry(reconcileJob, deliveryJob)
	requireResource(ctx, logg, "cron registry", err)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	requireResource(ctx, logg, "cron service", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})
	if *once {
		var names []string
		if *only != "" {
			names = strings.Split(*only, ",")
		}
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx, names...); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "failed to initialize", err)
	os.Exit(1)
}
