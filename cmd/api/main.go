package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"portraitstudio/internal/adapter/repo"
	"portraitstudio/internal/http/handlers"
	httpapi "portraitstudio/internal/http/httpapi"
	"portraitstudio/internal/infra"
	"portraitstudio/internal/infra/credentials"
	"portraitstudio/internal/providers/genai"
	"portraitstudio/internal/providers/razorpay"
	"portraitstudio/internal/providers/refundapi"
	"portraitstudio/internal/studio"
	"portraitstudio/internal/telemetry"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()

	// Provider credentials stored in Postgres fill in keys missing from the environment.
	dbpool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
		logger.Info().Msg("no database configured, credentials come from the environment only")
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to connect database")
	default:
		defer dbpool.Close()
		fillCredentials(ctx, cfg, credentials.NewStore(infra.NewSQLRunner(dbpool, logger)), logger)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	store, closeStore := sessionStore(ctx, cfg, logger)
	defer closeStore()

	generator, err := genai.NewClient(ctx, genai.Options{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}
	if generator.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set, portraits are rendered locally")
	}

	gatewayOpts := razorpay.Options{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		Logger:    &logger,
	}
	gateway := razorpay.NewGateway(gatewayOpts)
	if gateway.Sandbox() {
		logger.Warn().Msg("razorpay keys not set, checkout runs in sandbox mode")
	}

	metrics, err := telemetry.New(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create metrics")
	}

	svc, err := studio.NewService(studio.Options{
		Store:             store,
		Gateway:           gateway,
		Generator:         generator,
		Refunder:          refunder(cfg, gatewayOpts, logger),
		Logger:            &logger,
		Metrics:           metrics,
		CheckoutTimeout:   cfg.CheckoutTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
		RefundTimeout:     cfg.RefundTimeout,
		CheckoutExpiry:    cfg.CheckoutExpiry,
		AutoRefund:        cfg.AutoRefund,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create studio service")
	}

	app := handlers.NewApp(svc, logger, handlers.CheckoutInfo{
		KeyID:   gateway.KeyID(),
		Sandbox: gateway.Sandbox(),
	}, cfg.AllowedOrigins)

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Generations started by payment callbacks finish before the process exits.
	app.Wait()
	logger.Info().Msg("server stopped")
}

func fillCredentials(ctx context.Context, cfg *infra.Config, store *credentials.Store, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to ensure integration_tokens table")
		return
	}
	if cfg.GeminiAPIKey == "" {
		key, err := store.GeminiAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load gemini api key")
		}
		cfg.GeminiAPIKey = key
	}
	if cfg.RazorpayKeyID == "" && cfg.RazorpayKeySecret == "" {
		keyID, secret, err := store.RazorpayKeys(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load razorpay keys")
		}
		cfg.RazorpayKeyID, cfg.RazorpayKeySecret = keyID, secret
	}
}

func sessionStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (studio.Store, func()) {
	rdb, err := infra.NewRedisClient(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoRedis):
		logger.Info().Dur("ttl", cfg.SessionTTL).Msg("sessions kept in memory")
		return studio.NewMemoryStore(cfg.SessionTTL), func() {}
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	logger.Info().Dur("ttl", cfg.SessionTTL).Msg("sessions kept in redis")
	return repo.NewSessionRepository(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }
}

func refunder(cfg *infra.Config, opts razorpay.Options, logger zerolog.Logger) studio.Refunder {
	switch cfg.RefundMode {
	case infra.RefundModeEndpoint:
		client, err := refundapi.NewClient(refundapi.Options{
			Endpoint: cfg.RefundEndpoint,
			Logger:   &logger,
			Timeout:  cfg.RefundTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create refund client")
		}
		return client
	case infra.RefundModeOffline:
		return refundapi.Offline{}
	}

	r, err := razorpay.NewRefunder(opts)
	if err != nil {
		logger.Warn().Err(err).Msg("razorpay refunds unavailable, refunds are handled manually")
		return refundapi.Offline{}
	}
	return r
}
