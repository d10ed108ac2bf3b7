// Pricecastd serves the house-price prediction form over HTTP.
//
// It forwards submissions to the regression backend, keeps the local
// session record, and exposes /health and /metrics.
//
// Configuration is loaded from ~/.config/pricecast/config.yaml (if present)
// and environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	pricecastd
//
//	# Point at a different backend
//	PREDICTOR_ENDPOINT=http://models:5000/predict_api pricecastd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/pricecast/internal/config"
	httpserver "github.com/fyrsmithlabs/pricecast/internal/http"
	"github.com/fyrsmithlabs/pricecast/internal/logging"
	"github.com/fyrsmithlabs/pricecast/internal/predictor"
	"github.com/fyrsmithlabs/pricecast/internal/session"
	"github.com/fyrsmithlabs/pricecast/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/pricecast/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  pricecastd           Start the server\n")
			fmt.Fprintf(os.Stderr, "  pricecastd version   Show version information\n")
			os.Exit(1)
		}
	}

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("pricecastd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every component and blocks until ctx is cancelled, then shuts
// the server down within cfg.Server.ShutdownTimeout.
func run(ctx context.Context, cfg *config.Config) error {
	// Telemetry reports its own setup through a console-only logger; the
	// process logger is built afterwards so it can bridge to the log provider.
	bootLogger, err := initLogger(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version), bootLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	client, err := predictor.NewClient(predictor.FromConfig(cfg),
		predictor.WithLogger(logger.Named("predictor")),
		predictor.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create prediction client: %w", err)
	}
	form := predictor.NewForm(client, cfg.Policy())

	storage, err := session.NewFileStorage(cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	store := session.NewStore(session.NewRepository(storage, cfg.Session.Key),
		session.WithLogger(logger.Named("session")),
	)

	srv, err := httpserver.NewServer(httpserver.Deps{
		Backend: client,
		Form:    form,
		Store:   store,
		Logger:  logger,
	}, &httpserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info(ctx, "starting pricecastd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("predictor_endpoint", cfg.Predictor.Endpoint),
		zap.String("validation_policy", string(cfg.Policy())),
		zap.String("session_dir", storage.Dir()),
		zap.Bool("telemetry", tel.IsEnabled()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info(context.WithoutCancel(ctx), "server shutdown complete")
	return err
}

// initLogger builds a logger from the observability section. With telemetry
// enabled and a non-nil provider, records are also bridged to OTEL.
func initLogger(cfg *config.Config, provider otellog.LoggerProvider) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	if err := lc.ApplyObservability(cfg.Observability); err != nil {
		return nil, err
	}
	return logging.NewLogger(lc, provider)
}
