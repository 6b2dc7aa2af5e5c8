package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshmarket/grocery-backend/api/controllers"
	authcontrollers "github.com/freshmarket/grocery-backend/api/controllers/auth"
	cartcontrollers "github.com/freshmarket/grocery-backend/api/controllers/cart"
	ordercontrollers "github.com/freshmarket/grocery-backend/api/controllers/orders"
	paymentcontrollers "github.com/freshmarket/grocery-backend/api/controllers/payments"
	requestcontrollers "github.com/freshmarket/grocery-backend/api/controllers/requests"
	vendorcontrollers "github.com/freshmarket/grocery-backend/api/controllers/vendors"
	webhookcontrollers "github.com/freshmarket/grocery-backend/api/controllers/webhooks"
	"github.com/freshmarket/grocery-backend/api/middleware"
	"github.com/freshmarket/grocery-backend/internal/auth"
	"github.com/freshmarket/grocery-backend/internal/inventory"
	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/internal/requests"
	"github.com/freshmarket/grocery-backend/internal/vendors"
	"github.com/freshmarket/grocery-backend/pkg/auth/session"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"github.com/freshmarket/grocery-backend/pkg/redis"
)

// CacheStore is the Redis surface used by rate limiting and idempotency.
type CacheStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services are the handlers' collaborators. A nil service makes its
// handlers answer 500.
type Services struct {
	Auth         auth.Service
	Register     auth.RegisterService
	Inventory    inventory.Service
	Orders       orders.Service
	Tracking     ordercontrollers.LocationService
	Verifier     paymentcontrollers.Verifier
	UPI          paymentcontrollers.UPIIssuer
	Webhook      webhookcontrollers.PaymentWebhookService
	WebhookGuard webhookcontrollers.PaymentWebhookGuard
	Vendors      vendors.Service
	Requests     requests.Service
}

// Observability carries the scrape endpoint and request metrics. Both are optional.
type Observability struct {
	HTTP     *metrics.HTTP
	Gatherer prometheus.Gatherer
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	svc Services,
	sessions session.AccessSessionChecker,
	cache CacheStore,
	readiness map[string]controllers.Pinger,
	obs Observability,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Tracing(logg),
		middleware.Metrics(obs.HTTP),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	if cache != nil {
		r.Use(middleware.Idempotency(cache, logg))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)
	withLimit := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if cache == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AuthRateLimit(policy, cache, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if obs.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(obs.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(withLimit(signupPolicy)).Post("/signup", authcontrollers.Signup(svc.Register, logg))
			r.With(withLimit(loginPolicy)).Post("/login", authcontrollers.Login(svc.Auth, logg))
			r.Post("/refresh", authcontrollers.Refresh(svc.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", authcontrollers.Logout(svc.Auth, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Post("/add", cartcontrollers.Add(svc.Inventory, logg))
			r.Post("/remove", cartcontrollers.Remove(svc.Inventory, logg))
			r.Post("/bulk-add", cartcontrollers.BulkAdd(svc.Inventory, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(svc.Orders, logg))
			r.Get("/{id}", ordercontrollers.Detail(svc.Orders, logg))
			r.Get("/{id}/location", ordercontrollers.Location(svc.Tracking, logg))
			r.Post("/{id}/location", ordercontrollers.UpdateLocation(svc.Tracking, logg))
		})

		r.Post("/payments/verify", paymentcontrollers.Verify(svc.Verifier, logg))
		r.Post("/payments/upi-qr", paymentcontrollers.UPIQR(svc.UPI, logg))
		r.Post("/webhooks/payment", webhookcontrollers.PaymentWebhook(svc.Webhook, cfg.Payments.WebhookSecret, svc.WebhookGuard, logg))

		// The singular paths are the ones existing storefront clients call.
		verificationStatus := vendorcontrollers.VerificationStatus(svc.Vendors, logg)
		submitRequest := requestcontrollers.Submit(svc.Requests, logg)
		r.Get("/vendors/verification-status/{email}", verificationStatus)
		r.Post("/customer/requests", submitRequest)
		r.Post("/customer/submit-request", submitRequest)

		r.Route("/vendor", func(r chi.Router) {
			r.Get("/verification-status/{email}", verificationStatus)

			r.Group(func(r chi.Router) {
				r.Use(
					middleware.Auth(cfg.JWT, sessions, logg),
					middleware.RequireRole(logg, enums.UserRoleVendor, enums.UserRoleAdmin),
				)
				r.Get("/stock-notifications", cartcontrollers.StockNotifications(svc.Inventory, logg))
				r.Get("/customer-requests", requestcontrollers.ListPending(svc.Requests, logg))
				r.Put("/customer-requests/{id}/mark-notified", requestcontrollers.MarkNotified(svc.Requests, logg))
				r.Put("/customer-requests/{id}/mark-fulfilled", requestcontrollers.MarkFulfilled(svc.Requests, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Get("/vendor-verifications", vendorcontrollers.ListVerifications(svc.Vendors, logg))
				r.Put("/vendor-verifications/{id}", vendorcontrollers.ResolveVerification(svc.Vendors, logg))
				r.Post("/orders/{id}/collect", ordercontrollers.Collect(svc.Orders, logg))
			})
		})
	})

	return r
}
