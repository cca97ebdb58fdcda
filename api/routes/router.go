package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtwroastery/roastery-backend/api/controllers"
	cartcontrollers "github.com/rtwroastery/roastery-backend/api/controllers/cart"
	ordercontrollers "github.com/rtwroastery/roastery-backend/api/controllers/orders"
	subscriptioncontrollers "github.com/rtwroastery/roastery-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/rtwroastery/roastery-backend/api/controllers/webhooks"
	"github.com/rtwroastery/roastery-backend/api/middleware"
	"github.com/rtwroastery/roastery-backend/internal/auth"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/catalog"
	"github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/internal/shipping"
	"github.com/rtwroastery/roastery-backend/internal/subscriptions"
	"github.com/rtwroastery/roastery-backend/pkg/auth/session"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/db"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	"github.com/rtwroastery/roastery-backend/pkg/metrics"
	pkgredis "github.com/rtwroastery/roastery-backend/pkg/redis"
)

// RedisClient is the slice of the redis client the HTTP layer touches.
type RedisClient interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth          auth.Service
	Catalog       catalog.Service
	Shipping      shipping.Service
	Blends        blends.Service
	Cart          cart.Service
	Orders        orders.Service
	Payments      payments.Service
	Subscriptions subscriptions.Service
}

// StripeWebhook verifies, de-duplicates and applies incoming Stripe events.
type StripeWebhook struct {
	Service  webhookcontrollers.StripeWebhookService
	Verifier webhookcontrollers.EventVerifier
	Ledger   webhookcontrollers.EventLedger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient RedisClient,
	sessions session.AccessSessionChecker,
	registry *prometheus.Registry,
	svc Services,
	stripeWebhook StripeWebhook,
) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// Interface-typed nils keep optional middleware and probes disabled.
	var (
		limiter   middleware.RateLimiter
		idemStore pkgredis.IdempotencyStore
		redisP    controllers.Pinger
	)
	if redisClient != nil {
		limiter, idemStore, redisP = redisClient, redisClient, redisClient
	}
	var dbPinger controllers.Pinger
	if dbP != nil {
		dbPinger = dbP
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisP))
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(stripeWebhook.Service, stripeWebhook.Verifier, stripeWebhook.Ledger, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(svc.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Get("/me", controllers.AuthMe(svc.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(svc.Auth, logg))
		})
	})

	r.Get("/api/v1/products", controllers.ProductList(svc.Catalog, logg))
	r.Get("/api/v1/shipping/rates", controllers.ShippingRateList(svc.Shipping, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/custom-blends", func(r chi.Router) {
			r.Post("/", controllers.BlendCreate(svc.Blends, logg))
			r.Get("/", controllers.BlendList(svc.Blends, logg))
			r.Get("/{blendId}", controllers.BlendDetail(svc.Blends, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Post("/", cartcontrollers.CartAdd(svc.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(svc.Cart, logg))
			r.Delete("/{itemId}", cartcontrollers.CartRemove(svc.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(svc.Orders, logg))
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/session", controllers.CheckoutSession(svc.Payments, logg))
			r.Get("/status/{sessionId}", controllers.CheckoutStatus(svc.Payments, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", subscriptioncontrollers.Create(svc.Subscriptions, logg))
			r.Get("/", subscriptioncontrollers.List(svc.Subscriptions, logg))
			r.Patch("/{subscriptionId}", subscriptioncontrollers.UpdateStatus(svc.Subscriptions, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Post("/products", controllers.AdminProductCreate(svc.Catalog, logg))
		r.Post("/shipping/rates", controllers.AdminShippingRateCreate(svc.Shipping, logg))
		r.Get("/orders", ordercontrollers.AdminList(svc.Orders, logg))
		r.Patch("/orders/{orderId}", ordercontrollers.AdminUpdateStatus(svc.Orders, logg))
	})

	return r
}
