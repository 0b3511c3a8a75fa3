package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/cloudmerce/internal"
	"github.com/dukerupert/cloudmerce/internal/billing"
	"github.com/dukerupert/cloudmerce/internal/cache"
	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/events"
	"github.com/dukerupert/cloudmerce/internal/handler/api"
	"github.com/dukerupert/cloudmerce/internal/idempotency"
	"github.com/dukerupert/cloudmerce/internal/middleware"
	"github.com/dukerupert/cloudmerce/internal/mongodb"
	"github.com/dukerupert/cloudmerce/internal/postgres"
	"github.com/dukerupert/cloudmerce/internal/router"
	"github.com/dukerupert/cloudmerce/internal/routes"
	"github.com/dukerupert/cloudmerce/internal/service"
	"github.com/dukerupert/cloudmerce/internal/telemetry"
	"github.com/dukerupert/cloudmerce/internal/worker"
)

// store is the repository set of whichever backend STORE_DRIVER selects.
type store struct {
	carts    domain.CartRepository
	orders   domain.OrderRepository
	products domain.ProductRepository
	users    domain.UserRepository
	ping     func(ctx context.Context) error
	close    func()
}

func openStore(ctx context.Context, cfg internal.StoreConfig, logger *slog.Logger) (*store, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("Connecting to PostgreSQL...")
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}

		logger.Info("Running database migrations...")
		if err := postgres.RunMigrations(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}

		s := postgres.NewStore(pool)
		return &store{
			carts:    s.Carts,
			orders:   s.Orders,
			products: s.Products,
			users:    s.Users,
			ping:     s.Ping,
			close:    pool.Close,
		}, nil

	default:
		logger.Info("Connecting to MongoDB...", "database", cfg.MongoDatabase)
		db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}

		s := mongodb.NewStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close(context.Background())
			return nil, err
		}
		return &store{
			carts:    s.Carts,
			orders:   s.Orders,
			products: s.Products,
			users:    s.Users,
			ping:     s.Ping,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				s.Close(ctx)
			},
		}, nil
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewMetrics("cloudmerce", reg)
	businessMetrics := telemetry.NewBusinessMetrics("cloudmerce", reg)

	// Document store
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStore(connectCtx, cfg.Store, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}
	defer st.close()
	logger.Info("Store connection established", "driver", cfg.Store.Driver)

	healthChecks := map[string]api.HealthCheck{"store": st.ping}

	// Redis backs the cart cache and checkout idempotency; both are optional.
	var (
		cartCache cache.CartCache = cache.Noop{}
		idem      api.Idempotency
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		cartCache = cache.NewRedisCache(rdb, cfg.Redis.CartTTL)
		idem = idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL)
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Redis connection established")
	} else {
		logger.Warn("REDIS_URL not set, cart cache and checkout idempotency disabled")
	}

	// Order events
	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, "cloudmerce")
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
		logger.Info("NATS connection established", "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	// Payment gateways
	gateways, err := billing.NewRegistryFromConfig(billing.RegistryConfig{
		PixProvider:  cfg.Payment.PixProvider,
		CardProvider: cfg.Payment.CardProvider,
		Asaas: billing.AsaasConfig{
			AccessToken: cfg.Payment.AsaasAccessToken,
			BaseURL:     cfg.Payment.AsaasBaseURL,
			HTTPClient: &http.Client{
				Timeout:   cfg.Payment.Timeout,
				Transport: &telemetry.HTTPTransport{},
			},
		},
		Stripe: billing.StripeConfig{
			APIKey:   cfg.Payment.StripeSecretKey,
			Currency: cfg.Payment.StripeCurrency,
		},
		Guard: billing.GuardConfig{
			Timeout:          cfg.Payment.Timeout,
			FailureThreshold: cfg.Payment.FailureThreshold,
			OpenDuration:     cfg.Payment.OpenDuration,
			Observe:          businessMetrics.ObserveGateway,
			Logger:           logger,
		},
	})
	if err != nil {
		return fmt.Errorf("billing initialization failed: %w", err)
	}
	logger.Info("Payment gateways configured",
		"pix", cfg.Payment.PixProvider,
		"card", cfg.Payment.CardProvider)

	// Services
	cartService, err := service.NewCartService(service.CartServiceConfig{
		Carts:    st.carts,
		Products: st.products,
		Users:    st.users,
		Cache:    cartCache,
		Metrics:  businessMetrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cart service: %w", err)
	}

	orderService, err := service.NewOrderService(service.OrderServiceConfig{
		Orders:   st.orders,
		Carts:    st.carts,
		Products: st.products,
		Users:    st.users,
		Gateways: gateways,
		Cache:    cartCache,
		Events:   publisher,
		Metrics:  businessMetrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize order service: %w", err)
	}

	// Pending order sweep
	if cfg.Worker.Enabled {
		w := worker.NewWorker(orderService, worker.Config{
			PollInterval:   cfg.Worker.PollInterval,
			BatchSize:      cfg.Worker.BatchSize,
			MaxConcurrency: cfg.Worker.MaxConcurrency,
		}, logger)
		go func() {
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "error", err)
			}
		}()
	}

	// ==========================================================================
	// Router
	// ==========================================================================

	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env != "prod" {
		securityConfig.HSTSMaxAge = 0
	}

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.Ecommerce,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		telemetry.SentryMiddleware(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		router.CORS(cfg.AllowedOrigins),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
	)

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		Cart:            api.NewCartHandler(cartService, logger),
		Order:           api.NewOrderHandler(orderService, idem, logger),
		Health:          api.NewHealthHandler(healthChecks),
		Metrics:         httpMetrics.Handler(),
		CheckoutLimiter: checkoutLimiter,
	})

	// ==========================================================================
	// Serve
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.GatewayTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
