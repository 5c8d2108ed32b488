package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minewebstore/mwsync/internal/bridge"
	"github.com/minewebstore/mwsync/internal/config"
	"github.com/minewebstore/mwsync/internal/engine"
	"github.com/minewebstore/mwsync/internal/host"
	"github.com/minewebstore/mwsync/internal/rcon"
	"github.com/minewebstore/mwsync/internal/remote"
)

// shutdownTimeout bounds how long run waits for in-flight work after a
// signal.
const shutdownTimeout = 30 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Invoker and Roster replace the RCON connection (for testing).
	Invoker engine.Invoker
	Roster  host.RosterSource
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the sync daemon until interrupted.

The daemon registers with the storefront, then polls for purchased commands
and runs them on the game server. Queued commands and the player history
are restored from the data directory at startup and saved on shutdown.

Example:
  mwsync run --config /etc/mwsync.yaml
  MWS_WORDPRESS_SECRET_KEY=... mwsync run -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	return cmd
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	setupLogging(opts.Verbose || cfg.Debug.Enabled)
	slog.Debug("configuration loaded", "config", cfg.Redacted())

	snaps, err := openStore(cfg, formatter)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := snaps.Close(); closeErr != nil {
			slog.Error("error closing snapshot store", "error", closeErr)
		}
	}()

	source := remote.NewHTTPSource(cfg.WordPress.BaseURL, cfg.WordPress.SecretKey, cfg.HTTPTimeout(),
		remote.WithFetchLimit(cfg.Server.FetchLimit))

	invoker, roster, closeHost, err := gameHost(cfg, opts.Invoker, opts.Roster, formatter)
	if err != nil {
		return err
	}
	defer closeHost()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logConnectivity(ctx, source)

	b, err := bridge.New(ctx, bridge.Options{
		Server:            cfg.Server.Name,
		Source:            source,
		Invoker:           invoker,
		Snapshots:         snaps,
		PollInterval:      cfg.PollInterval(),
		RegistrationRetry: cfg.RegistrationRetry(),
		ReporterWorkers:   cfg.Reporter.Workers,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "cannot restore state", err, nil)
	}

	watcher := host.NewRosterWatcher(roster, b, cfg.RosterInterval())
	watcherDone := make(chan struct{})

	slog.Info("daemon starting",
		"server", cfg.Server.Name,
		"storefront", cfg.WordPress.BaseURL,
		"poll_interval", cfg.PollInterval(),
		"backend", cfg.Storage.Backend)
	fmt.Fprintln(cmd.OutOrStdout(), "mwsync running. Press Ctrl-C to stop.")

	b.Start(ctx)
	go func() {
		defer close(watcherDone)
		watcher.Run(ctx)
	}()

	<-ctx.Done()
	slog.Info("shutting down", "cause", context.Cause(ctx))
	<-watcherDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := b.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown incomplete", err)
	}

	slog.Info("daemon stopped gracefully")
	return nil
}

// gameHost returns the invoker and roster to use, connecting over RCON for
// whichever of them was not injected. The returned func closes the
// connection.
func gameHost(cfg *config.Config, invoker engine.Invoker, roster host.RosterSource, f *OutputFormatter) (engine.Invoker, host.RosterSource, func(), error) {
	if invoker != nil && roster != nil {
		return invoker, roster, func() {}, nil
	}

	client := rcon.NewClient(cfg.Host.RCONAddress, cfg.Host.RCONPassword, cfg.CommandTimeout())
	rconHost, err := host.NewRCONHost(client, cfg.Host.FailurePatterns)
	if err != nil {
		client.Close()
		return nil, nil, nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid failure patterns", err, nil)
	}
	if invoker == nil {
		invoker = rconHost
	}
	if roster == nil {
		roster = rconHost
	}
	return invoker, roster, func() { _ = client.Close() }, nil
}

// logConnectivity reports whether the storefront is reachable. The daemon
// starts either way; registration keeps retrying.
func logConnectivity(ctx context.Context, source *remote.HTTPSource) {
	st, err := source.CheckStatus(ctx)
	if err != nil {
		var rerr *remote.Error
		if errors.As(err, &rerr) {
			slog.Warn("storefront connectivity check failed",
				"status_code", rerr.StatusCode, "error", err)
			return
		}
		slog.Warn("storefront connectivity check failed", "error", err)
		return
	}
	slog.Info("storefront reachable",
		"plugin", st.Plugin, "version", st.Version, "status", st.Status,
		"database_ready", st.DatabaseReady)
}
