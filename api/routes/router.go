package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendora-market/vendora-backend/api/controllers"
	webhookcontrollers "github.com/vendora-market/vendora-backend/api/controllers/webhooks"
	"github.com/vendora-market/vendora-backend/api/middleware"
	checkoutsvc "github.com/vendora-market/vendora-backend/internal/checkout"
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
	"github.com/vendora-market/vendora-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	limiter *ratelimit.Limiter,
	checkoutService checkoutsvc.Service,
	paymentsService payments.Service,
	ordersService orders.Service,
	discountsService discounts.Service,
	reconcileService reconcile.Service,
	paymentWebhookService paymentwebhook.Service,
	paymentWebhookGuard *paymentwebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, enums.EndpointClassWebhook))
		r.Post("/payment", webhookcontrollers.PaymentWebhook(paymentWebhookService, cfg.Gateway.WebhookSecret, paymentWebhookGuard, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, enums.EndpointClassCheckout))
		r.Post("/", controllers.Checkout(checkoutService, paymentsService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Route("/groups/{groupId}", func(r chi.Router) {
			r.Use(middleware.RateLimit(limiter, enums.EndpointClassCheckout))
			r.Get("/", controllers.OrderGroupStatus(ordersService, logg))
		})
		r.Route("/{orderId}", func(r chi.Router) {
			r.Use(middleware.RateLimit(limiter, enums.EndpointClassDiscount))
			r.Post("/coupon", controllers.ApplyCoupon(discountsService, logg))
			r.Post("/gift-card", controllers.ApplyGiftCard(discountsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, enums.EndpointClassAdmin))
		r.Post("/reconcile", controllers.RunReconcile(reconcileService, cfg.Reconcile.HoursDefault, logg))
	})

	return r
}
