package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "gamefinder/internal/api/http"
	"gamefinder/internal/app"
	"gamefinder/internal/metrics"
	"gamefinder/internal/providers/catalog"
	"gamefinder/internal/providers/igdb"
	"gamefinder/internal/providers/twitch"
	"gamefinder/internal/search"
	"gamefinder/internal/telemetry"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code once every deferred cleanup has finished.
func run() int {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("configuration invalid", slog.String("error", err.Error()))
		return 1
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "gamefinder",
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "gamefinder"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("sourceTimeout", cfg.SourceTimeout),
		slog.Duration("enrichTimeout", cfg.EnrichTimeout),
		slog.Any("providers", cfg.Providers),
		slog.String("igdbBaseURL", cfg.IGDBBaseURL),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Bool("tracing", cfg.OTLPEndpoint != ""),
		slog.Float64("traceSampleRatio", cfg.TraceSampleRatio),
	)

	catalogClient := &http.Client{Timeout: cfg.SourceTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	metadataClient := &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}

	providers := catalog.NewProviders(catalog.RegistryOptions{
		Endpoints: cfg.CatalogEndpoints,
		Enabled:   cfg.Providers,
		UserAgent: cfg.UserAgent,
		Client:    catalogClient,
	})
	sources := make([]search.Source, 0, len(providers))
	for _, provider := range providers {
		sources = append(sources, provider)
	}
	if len(sources) == 0 {
		logger.Warn("no catalog providers enabled", slog.Any("requested", cfg.Providers))
	}

	tokens := twitch.NewTokenSource(
		twitch.NewClient(twitch.Config{TokenURL: cfg.TwitchTokenURL, Client: metadataClient}),
		twitch.TokenSourceConfig{
			ClientID:     cfg.IGDBClientID,
			ClientSecret: cfg.IGDBClientSecret,
			Store:        buildTokenStore(cfg, logger),
			Logger:       logger,
		},
	)
	igdbClient := igdb.NewClient(igdb.Config{
		ClientID:          cfg.IGDBClientID,
		BaseURL:           cfg.IGDBBaseURL,
		Client:            metadataClient,
		Tokens:            tokens,
		RequestsPerSecond: cfg.IGDBRateLimit,
	})

	searchService := search.NewService(sources, cfg.SourceTimeout,
		search.WithMetadata(igdbClient),
		search.WithEnrichTimeout(cfg.EnrichTimeout),
		search.WithLogger(logger),
	)

	handler := apihttp.NewServer(searchService,
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.SourceTimeout + cfg.EnrichTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("game finder service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Int("providers", len(sources)),
	)

	exitCode := 0
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("game finder service stopped", slog.Int("exitCode", exitCode))
	return exitCode
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildTokenStore returns a Redis-backed token store, or nil to keep the
// token in process memory only.
func buildTokenStore(cfg app.Config, logger *slog.Logger) twitch.Store {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("token store disabled: invalid redis url", slog.String("error", err.Error()))
		return nil
	}
	store := twitch.NewRedisStore(redis.NewClient(redisOpts))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		logger.Warn("token store disabled: redis unavailable", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis token store connected", slog.String("addr", redisOpts.Addr))
	return store
}
