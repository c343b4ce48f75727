package app

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/category"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/file"
	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/payment"
	"github.com/xenking/buzzer/internal/domain/product"
	"github.com/xenking/buzzer/internal/event"
	"github.com/xenking/buzzer/internal/handler"
	"github.com/xenking/buzzer/internal/storage/postgres"
	"github.com/xenking/buzzer/internal/storage/s3"
	"github.com/xenking/buzzer/internal/stripe"
	"github.com/xenking/buzzer/pkg/health"
	"github.com/xenking/buzzer/pkg/httpmiddleware"
)

// authPaths get the stricter rate limit.
var authPaths = []string{"/api/auth/login", "/api/auth/register"}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("events", cfg.Events.Driver))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	db := postgres.NewDB(pool)

	// Infrastructure.
	tokens, err := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}
	store, err := s3.New(ctx, cfg.S3)
	if err != nil {
		return errors.Wrap(err, "create object store")
	}
	gateway, err := stripe.New(cfg.Stripe)
	if err != nil {
		return errors.Wrap(err, "create payment gateway")
	}
	publisher, err := event.NewPublisher(ctx, cfg.Events, m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadiness(health.Check{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(db),
	})
	if addrs := brokerAddrs(cfg.Events); len(addrs) > 0 {
		healthSvc.AddReadiness(health.Check{
			Name:    "events",
			Timeout: 3 * time.Second,
			Func:    health.DialCheck(addrs...),
		})
	}
	healthSvc.AddLiveness(health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	accountRepo := postgres.NewAccountRepository(db)
	addressRepo := postgres.NewAddressRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	productRepo := postgres.NewProductRepository(db)
	cartRepo := postgres.NewCartRepository(db)
	couponRepo := postgres.NewCouponRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	cartService := cart.NewService(cartRepo, productRepo)
	orderService, err := order.NewService(order.Deps{
		Orders:         orderRepo,
		Carts:          cartRepo,
		Stock:          productRepo,
		Addresses:      addressRepo,
		Coupons:        couponValidator,
		Redemptions:    couponRepo,
		Tx:             db,
		Publisher:      publisher,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	paymentService, err := payment.NewService(payment.Deps{
		Payments:       paymentRepo,
		Carts:          cartService,
		Coupons:        couponValidator,
		Orders:         orderService,
		Gateway:        gateway,
		Tx:             db,
		Publisher:      publisher,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create payment service")
	}

	h := handler.New(handler.Deps{
		Accounts:   account.NewService(accountRepo, tokens, store, cfg.Auth.BcryptCost),
		Files:      file.NewService(store),
		Addresses:  address.NewService(addressRepo, db),
		Categories: category.NewService(categoryRepo),
		Products:   product.NewService(productRepo, store),
		Carts:      cartService,
		Coupons:    coupon.NewService(couponRepo),
		Orders:     orderService,
		Payments:   paymentService,
	})

	// Router: middleware is registered on chi so the route pattern is known
	// to the instrumentation and access log.
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", "Stripe-Signature"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.AuthMax,
			Window:  cfg.RateLimit.AuthWindow,
			Paths:   authPaths,
			Message: "Too many authentication attempts, please try again later.",
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("buzzer-api", m),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.RegisterRoutes(r)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           r,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// brokerAddrs returns the host:port pairs of the configured event broker.
func brokerAddrs(cfg event.Config) []string {
	switch cfg.Driver {
	case event.DriverKafka:
		return cfg.Kafka.Brokers
	case event.DriverAMQP:
		u, err := url.Parse(cfg.AMQP.URL)
		if err != nil || u.Hostname() == "" {
			return nil
		}
		port := u.Port()
		if port == "" {
			port = "5672"
		}
		return []string{net.JoinHostPort(u.Hostname(), port)}
	}
	return nil
}
