// Package main implements pcx, the pricecast command-line client.
//
// pcx talks to the regression backend directly and keeps the same local
// session record as pricecastd.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pricecast/internal/config"
	"github.com/fyrsmithlabs/pricecast/internal/logging"
	"github.com/fyrsmithlabs/pricecast/internal/predictor"
	"github.com/fyrsmithlabs/pricecast/internal/session"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// displayedError marks a failure the command has already shown the user. It
// still makes the process exit non-zero.
type displayedError struct {
	err error
}

func (e *displayedError) Error() string { return e.err.Error() }
func (e *displayedError) Unwrap() error { return e.err }

func reportError(w io.Writer, err error) {
	var shown *displayedError
	if errors.As(err, &shown) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pcx",
		Short: "House price predictions from the command line",
		Long: `pcx submits Boston housing features to the pricecast regression backend
and manages the local signed-in session.

Configuration is read from ~/.config/pricecast/config.yaml and environment
variables such as PREDICTOR_ENDPOINT and SESSION_DIR.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/pricecast/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newPredictCmd(opts),
		newFormCmd(opts),
		newHealthCmd(opts),
		newSignInCmd(opts),
		newSignUpCmd(opts),
		newSignOutCmd(opts),
		newWhoamiCmd(opts),
		newProfileCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// app holds the components a command needs, built from configuration.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	storage *session.FileStorage
	store   *session.Store
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, err
	}

	lc := logging.NewCLIConfig()
	if opts.verbose {
		lc.Level = logging.TraceLevel
	}
	logger, err := logging.NewLogger(lc, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	storage, err := session.NewFileStorage(cfg.Session.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		storage: storage,
		store: session.NewStore(session.NewRepository(storage, cfg.Session.Key),
			session.WithLogger(logger.Named("session")),
		),
	}, nil
}

func (a *app) client() (*predictor.Client, error) {
	return predictor.NewClient(predictor.FromConfig(a.cfg), predictor.WithLogger(a.logger.Named("predictor")))
}
