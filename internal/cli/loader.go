package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/minewebstore/mwsync/internal/config"
	"github.com/minewebstore/mwsync/internal/store"
)

// validationReport renders config problems in text mode.
type validationReport []config.ValidationError

func (r validationReport) WriteText(w io.Writer) error {
	for _, ve := range r {
		if _, err := fmt.Fprintf(w, "  %s %s: %s\n", ve.Code, ve.Field, ve.Message); err != nil {
			return err
		}
	}
	return nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig loads and validates the config named by --config. Problems
// are written through f; the returned error carries the exit code.
func loadConfig(opts *RootOptions, f *OutputFormatter) (*config.Config, error) {
	f.VerboseLog("loading config %s", opts.ConfigPath)

	cfg, err := config.Load(opts.ConfigPath)
	var invalid *config.InvalidError
	switch {
	case errors.As(err, &invalid):
		_ = f.Error(ErrCodeConfig,
			fmt.Sprintf("invalid configuration %s (%d problem(s))", opts.ConfigPath, len(invalid.Errors)),
			validationReport(invalid.Errors))
		return nil, WrapExitError(ExitFailure, "invalid configuration", err)
	case err != nil:
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "cannot load configuration", err, nil)
	}
	return cfg, nil
}

// openStore opens the configured snapshot backend.
func openStore(cfg *config.Config, f *OutputFormatter) (store.Snapshotter, error) {
	f.VerboseLog("opening %s store in %s", cfg.Storage.Backend, cfg.Storage.DataDir)

	snaps, err := store.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStorage, "cannot open snapshot store", err, nil)
	}
	return snaps, nil
}
