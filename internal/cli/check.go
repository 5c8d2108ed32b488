package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/minewebstore/mwsync/internal/remote"
)

// CheckResult is the outcome of a successful check.
type CheckResult struct {
	Config     string               `json:"config"`
	Server     string               `json:"server"`
	Storefront string               `json:"storefront"`
	Status     *remote.ServerStatus `json:"status"`
}

// WriteText implements Texter.
func (r CheckResult) WriteText(w io.Writer) error {
	ready := "not ready"
	if r.Status.DatabaseReady {
		ready = "ready"
	}
	secret := "not configured"
	if r.Status.SecretConfigured {
		secret = "configured"
	}
	_, err := fmt.Fprintf(w, "✓ Config %s valid\n"+
		"Server:     %s\n"+
		"Storefront: %s\n"+
		"Plugin:     %s %s (%s)\n"+
		"Database:   %s\n"+
		"Secret:     %s\n",
		r.Config, r.Server, r.Storefront,
		r.Status.Plugin, r.Status.Version, r.Status.Status,
		ready, secret)
	return err
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and test storefront connectivity",
		Long: `Validate the config file, then call the storefront's status endpoint.

Every config problem is listed, not just the first. A 404 from the status
endpoint means the storefront plugin is not installed or not active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}

	source := remote.NewHTTPSource(cfg.WordPress.BaseURL, cfg.WordPress.SecretKey, cfg.HTTPTimeout())
	formatter.VerboseLog("checking %s", cfg.WordPress.BaseURL)

	st, err := source.CheckStatus(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeConnectivity, "storefront check failed", err,
			map[string]any{"storefront": cfg.WordPress.BaseURL, "status_code": remote.StatusCodeOf(err)})
	}

	return formatter.Success(CheckResult{
		Config:     opts.ConfigPath,
		Server:     cfg.Server.Name,
		Storefront: cfg.WordPress.BaseURL,
		Status:     st,
	})
}
