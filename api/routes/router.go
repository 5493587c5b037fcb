package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Dependencies carries everything the HTTP surface is built from. Optional
// services (payments, media, checkout, webhook guard) may be nil when their
// backing provider is not configured; the handlers then answer with an error.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics
	Pingers  map[string]controllers.Pinger

	RateLimiter  *redis.Client
	Carts        *cart.Registry
	Checkout     *checkout.Sessions
	Catalog      catalog.Service
	Payments     payments.Service
	Media        media.Service
	Auth         auth.Service
	Stripe       *stripe.Client
	WebhookGuard *payments.IdempotencyGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteRaw(w, http.StatusMethodNotAllowed, types.FlatError{Error: "Method not allowed"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	var limiter middleware.RateLimiter
	if deps.RateLimiter != nil {
		limiter = deps.RateLimiter
	}

	sessions := checkoutSessions(deps.Checkout)
	cartHandlers := cartcontrollers.NewHandlers(deps.Carts, sessions, logg)
	checkoutHandlers := controllers.NewCheckoutHandlers(deps.Carts, sessions, logg)
	adminAuth := middleware.AdminAuth(cfg.JWT, logg)

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.Payments, webhookSigner(deps.Stripe), webhookGuard(deps.WebhookGuard), logg))

		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/auth/login", controllers.AdminLogin(deps.Auth, logg))

		r.Get("/collections", controllers.ListCollections(deps.Catalog, logg))
		r.Get("/collections/{collectionId}", controllers.GetCollection(deps.Catalog, logg))
		r.Get("/items", controllers.ListItems(deps.Catalog, logg))
		r.Get("/items/{itemId}", controllers.GetItem(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.CartSession(logg))

			r.Post("/create-payment-intent", controllers.CreatePaymentIntent(deps.Payments, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandlers.Fetch())
				r.Delete("/", cartHandlers.Clear())
				r.Post("/items", cartHandlers.AddLine())
				r.Delete("/items/{productId}", cartHandlers.RemoveLine())
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandlers.Snapshot())
				r.Post("/intent", checkoutHandlers.Intent())
				r.Post("/confirm", checkoutHandlers.Confirm())
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuth)

			r.Post("/create-item", controllers.LegacyCreateItem(deps.Catalog, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Post("/items", controllers.AdminCreateItem(deps.Catalog, logg))
				r.Patch("/items/{itemId}", controllers.AdminUpdateItem(deps.Catalog, logg))
				r.Delete("/items/{itemId}", controllers.AdminDeleteItem(deps.Catalog, logg))

				r.Post("/collections", controllers.AdminCreateCollection(deps.Catalog, logg))
				r.Patch("/collections/{collectionId}", controllers.AdminUpdateCollection(deps.Catalog, logg))
				r.Delete("/collections/{collectionId}", controllers.AdminDeleteCollection(deps.Catalog, logg))

				r.Post("/media", controllers.AdminUploadMedia(deps.Media, maxUploadBytes(cfg), logg))
			})
		})
	})

	return r
}

func maxUploadBytes(cfg *config.Config) int64 {
	mb := cfg.Media.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}

type signingSecretSource interface {
	SigningSecret() string
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type sessionStore interface {
	Get(sessionID string, cart checkout.CartSource) (*checkout.Orchestrator, error)
	Peek(sessionID string, cart checkout.CartSource) (*checkout.Orchestrator, bool)
}

func checkoutSessions(s *checkout.Sessions) sessionStore {
	if s == nil {
		return nil
	}
	return s
}

// checkoutSessions, webhookSigner and webhookGuard keep nil pointers from becoming non-nil interfaces.
func webhookSigner(c *stripe.Client) signingSecretSource {
	if c == nil {
		return nil
	}
	return c
}

func webhookGuard(g *payments.IdempotencyGuard) eventGuard {
	if g == nil {
		return nil
	}
	return g
}
