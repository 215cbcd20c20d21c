// Package main is the entry point for the raincheck API server.
//
// It loads configuration, builds the stadium catalog and model registry
// (artifacts from MODEL_DIR or S3), wires the Open-Meteo aggregator with its
// optional Redis cache, and serves the chi router either as a plain HTTP
// server or, inside AWS Lambda, behind a function URL.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"raincheck/internal/api/handlers"
	"raincheck/internal/config"
	"raincheck/internal/core"
	"raincheck/internal/metrics"
	"raincheck/internal/models"
	"raincheck/internal/prediction"
	"raincheck/internal/stadiums"
	"raincheck/internal/weather"
)

const defaultSSMRegion = "ap-northeast-2"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("raincheck API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"metrics_backend", cfg.Metrics.Backend,
	)

	app, err := buildApp(context.Background(), cfg, logger, newAWSLoader(cfg))
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(app, logger)
	}
	return runHTTPServer(app.server, cfg, logger)
}

// secretProvider returns nil in local mode, where SSM resolution is skipped.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultSSMRegion
	}
	return config.NewSSMProvider(region)
}

// awsLoader lazily resolves the SDK config; it is only needed for S3
// artifacts and the CloudWatch backend.
type awsLoader func(ctx context.Context) (aws.Config, error)

func newAWSLoader(cfg *config.Config) awsLoader {
	var (
		once   sync.Once
		awsCfg aws.Config
		err    error
	)
	return func(ctx context.Context) (aws.Config, error) {
		once.Do(func() {
			awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Models.Region))
		})
		return awsCfg, err
	}
}

// app is the fully wired process.
type app struct {
	server *core.Server
	// flush publishes buffered telemetry; nil for pull-based backends.
	flush func(ctx context.Context)
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, loadAWS awsLoader) (*app, error) {
	thresholds := prediction.Thresholds{
		High:   cfg.Prediction.ThresholdHigh,
		Medium: cfg.Prediction.ThresholdMedium,
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	catalog, err := stadiums.Load(cfg.Models.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading stadium catalog: %w", err)
	}

	recorder, metricsHandler, flush, err := newMetrics(ctx, cfg, logger, loadAWS)
	if err != nil {
		return nil, err
	}

	store, err := newArtifactStore(ctx, cfg, catalog, loadAWS)
	if err != nil {
		return nil, err
	}
	registry := models.NewRegistry(catalog, store, logger)
	if err := registry.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("loading stadium models: %w", err)
	}
	recorder.SetModelsLoaded(registry.Len())
	logger.Info("stadium models ready",
		"loaded", registry.LoadedStadiums(),
		"configured", catalog.IDs(),
	)

	loc, err := cfg.Weather.Location()
	if err != nil {
		return nil, fmt.Errorf("loading weather timezone: %w", err)
	}

	var provider weather.Provider = weather.NewOpenMeteoClient(weather.OpenMeteoConfig{
		ForecastURL: cfg.Weather.ForecastURL,
		ArchiveURL:  cfg.Weather.ArchiveURL,
		Timezone:    cfg.Weather.Timezone,
		Timeout:     cfg.Weather.Timeout,
		APIKey:      cfg.Weather.APIKey,
	}, "raincheck/"+cfg.Build.Version, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = recorder
	srv.MetricsHandler = metricsHandler
	if c, ok := recorder.(io.Closer); ok {
		srv.Closers = append(srv.Closers, c)
	}
	srv.HealthProbes = append(srv.HealthProbes, registry)

	if cfg.Weather.CacheURL != "" {
		kv, err := weather.NewRedisKV(cfg.Weather.CacheURL)
		if err != nil {
			return nil, fmt.Errorf("connecting weather cache: %w", err)
		}
		provider = weather.NewCachedProvider(provider, kv, weather.CacheTTL{
			Forecast:   cfg.Weather.CacheForecastTTL,
			Historical: cfg.Weather.CacheHistoricalTTL,
		}, recorder, logger)
		srv.HealthProbes = append(srv.HealthProbes, kv)
		srv.Closers = append(srv.Closers, kv)
	}

	aggregator := weather.NewAggregator(catalog, provider, loc, logger,
		weather.WithFetchRecorder(recorder),
	)
	engine := prediction.NewEngine(registry, logger,
		prediction.WithThresholds(thresholds),
		prediction.WithFeatureResolver(aggregator),
		prediction.WithMetrics(recorder),
	)

	stadiumHandler := handlers.NewStadiumHandler(catalog, registry, logger)
	predictionHandler := handlers.NewPredictionHandler(engine, catalog, srv.Validator, logger)
	weatherHandler := handlers.NewWeatherHandler(aggregator, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		stadiumHandler.RegisterRoutes,
		predictionHandler.RegisterRoutes,
		weatherHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return &app{server: srv, flush: flush}, nil
}

// newMetrics builds the configured backend. The handler is non-nil only for
// prometheus; flush is non-nil only for cloudwatch.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger, loadAWS awsLoader) (metrics.Recorder, http.Handler, func(context.Context), error) {
	switch cfg.Metrics.Backend {
	case "prometheus":
		p := metrics.NewPrometheus(cfg.Metrics.Namespace)
		return p, p.Handler(), nil, nil
	case "cloudwatch":
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading AWS config for CloudWatch: %w", err)
		}
		cw := metrics.NewCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace, logger)
		return cw, nil, cw.Flush, nil
	default:
		return metrics.Noop{}, nil, nil, nil
	}
}

// newArtifactStore only builds an S3 client when a stadium needs one.
func newArtifactStore(ctx context.Context, cfg *config.Config, catalog *stadiums.Catalog, loadAWS awsLoader) (models.ArtifactStore, error) {
	store := models.RoutingStore{Files: models.FileStore{Dir: cfg.Models.Dir}}

	locators := make([]string, 0, catalog.Len())
	for _, d := range catalog.All() {
		locators = append(locators, d.ModelLocator)
	}
	if !models.NeedsS3(locators) {
		return store, nil
	}

	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for S3 artifacts: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Models.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.Models.EndpointURL)
			o.UsePathStyle = true
		}
	})
	store.S3 = models.S3Store{Client: models.NewAWSS3Client(client)}
	return store, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda serves the router behind a Lambda function URL. Buffered
// metrics are flushed before each invocation returns because the sandbox
// may be frozen afterwards.
func runLambda(a *app, logger *slog.Logger) error {
	logger.Info("starting in Lambda function URL mode")
	lambdaurl.Start(flushAfter(a.server.Handler(), a.flush))
	return nil
}

func flushAfter(next http.Handler, flush func(context.Context)) http.Handler {
	if flush == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		flush(context.WithoutCancel(r.Context()))
	})
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Releases the weather cache connection and flushes CloudWatch.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
