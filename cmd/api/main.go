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
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	webhookIdempotencyTTL = 72 * time.Hour
	webhookScope          = "stripe-webhook"
	shutdownTimeout       = 15 * time.Second
	intentHTTPTimeout     = 15 * time.Second
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

	var closers []func() error
	defer func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, cfg.App.IsDev(), logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	pingers := map[string]controllers.Pinger{"db": dbClient}

	var redisClient *redis.Client
	if !cfg.FeatureFlags.MemoryCart || redisConfigured(cfg.Redis) {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, redisClient.Close)
		pingers["redis"] = redisClient
	}

	carts, err := newCartRegistry(cfg, redisClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart registry", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Admin:     cfg.Admin,
		JWTConfig: cfg.JWT,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      logg,
		Gatherer:    registry,
		HTTP:        httpMetrics,
		Pingers:     pingers,
		RateLimiter: redisClient,
		Carts:       carts,
		Catalog:     catalogService,
		Auth:        authService,
	}

	if cfg.Stripe.Enabled() {
		stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			logg.Error(ctx, "failed to initialize stripe", err)
			os.Exit(1)
		}
		intentClient := pkgstripe.NewPaymentIntentClient(stripeClient)
		paymentsService, err := payments.NewService(payments.ServiceParams{
			Repo:     payments.NewRepository(dbClient.DB()),
			Stripe:   intentClient,
			Currency: stripeClient.Currency(),
			Logger:   logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create payments service", err)
			os.Exit(1)
		}
		deps.Stripe = stripeClient
		deps.Payments = paymentsService

		if redisClient != nil {
			guard, err := payments.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, webhookScope)
			if err != nil {
				logg.Error(ctx, "failed to create webhook guard", err)
				os.Exit(1)
			}
			deps.WebhookGuard = guard
		}

		sessions, err := checkout.NewSessions(
			gatewayFactory(cfg.Checkout, paymentsService, intentClient, logg),
			checkout.Options{SuccessURL: cfg.Checkout.SuccessURL, Metrics: checkoutMetrics, Logger: logg},
		)
		if err != nil {
			logg.Error(ctx, "failed to create checkout sessions", err)
			os.Exit(1)
		}
		deps.Checkout = sessions
		go runCheckoutSweeper(ctx, sessions, cfg.Checkout, logg)
	} else {
		logg.Warn(ctx, "stripe is not configured, payments and checkout are disabled")
	}

	if bucket := cfg.GCS.BucketName; bucket != "" {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		closers = append(closers, gcsClient.Close)
		pingers["gcs"] = gcsClient

		mediaService, err := media.NewService(gcsClient, int64(cfg.Media.MaxUploadMB)<<20, logg)
		if err != nil {
			logg.Error(ctx, "failed to create media service", err)
			os.Exit(1)
		}
		deps.Media = mediaService
	}

	go carts.RunSweeper(ctx, cfg.Checkout.SweepInterval, cfg.Checkout.SessionIdle)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func redisConfigured(cfg config.RedisConfig) bool {
	return cfg.URL != "" || cfg.Address != ""
}

func newCartRegistry(cfg *config.Config, client *redis.Client, logg *logger.Logger) (*cart.Registry, error) {
	if cfg.FeatureFlags.MemoryCart || client == nil {
		return cart.NewRegistry(cart.NewMemoryPersistence(), logg)
	}
	persistence, err := cart.NewRedisPersistence(client, cfg.Redis.CartTTL)
	if err != nil {
		return nil, err
	}
	return cart.NewRegistry(persistence, logg)
}

// gatewayFactory builds one gateway per cart session. With an intent endpoint
// configured, intents come from that URL and Stripe only confirms.
func gatewayFactory(cfg config.CheckoutConfig, intents payments.Service, client pkgstripe.PaymentIntentClient, logg *logger.Logger) checkout.GatewayFactory {
	httpClient := &http.Client{Timeout: intentHTTPTimeout}
	return func(sessionID string) checkout.Gateway {
		stripeGateway, err := checkout.NewStripeGateway(intents, client, sessionID, cfg.ReturnURL)
		if err != nil {
			logg.Error(context.Background(), "stripe gateway unavailable", err)
			return nil
		}
		if cfg.IntentEndpoint == "" {
			return stripeGateway
		}
		httpGateway, err := checkout.NewHTTPGateway(cfg.IntentEndpoint, httpClient, stripeGateway)
		if err != nil {
			logg.Error(context.Background(), "intent endpoint gateway unavailable", err)
			return nil
		}
		return httpGateway
	}
}

func runCheckoutSweeper(ctx context.Context, sessions *checkout.Sessions, cfg config.CheckoutConfig, logg *logger.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(cfg.SessionIdle); n > 0 {
				logg.Debug(logg.WithField(ctx, "evicted", n), "checkout session sweep")
			}
		}
	}
}
