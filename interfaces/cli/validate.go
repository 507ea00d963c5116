package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/supportflow/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	strict bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a supportflow configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Known backends, exporters and transports
  - Required connection settings for the selected backends
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  supportflow validate -c supportflow.yaml

  # Strict validation (fail on missing env vars)
  supportflow validate -c supportflow.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	if a.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	loader := infraconfig.NewLoader(
		infraconfig.WithValidation(true),
		infraconfig.WithStrictEnv(opts.strict),
	)
	cfg, err := loader.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Agent.Name)
	fmt.Fprintf(a.stdout, "  Version: %s\n", cfg.Agent.Version)

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Logging: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Fprintf(a.stdout, "  Ability timeout: %s\n", time.Duration(cfg.Engine.AbilityTimeout))
	if cfg.Engine.RequestTimeout > 0 {
		fmt.Fprintf(a.stdout, "  Request timeout: %s\n", time.Duration(cfg.Engine.RequestTimeout))
	}
	fmt.Fprintf(a.stdout, "  Checkpoints: %s\n", cfg.Checkpoint.Backend)
	fmt.Fprintf(a.stdout, "  Cache: %s\n", cfg.Cache.Backend)
	fmt.Fprintf(a.stdout, "  Retry: %d attempts\n", cfg.Resilience.Retry.MaxAttempts)
	if cfg.Resilience.RateLimit.Rate > 0 {
		fmt.Fprintf(a.stdout, "  Rate limiting: enabled (rate=%d, burst=%d)\n",
			cfg.Resilience.RateLimit.Rate, cfg.Resilience.RateLimit.Burst)
	}
	if cfg.Observability.Exporter != "" && cfg.Observability.Exporter != "none" {
		fmt.Fprintf(a.stdout, "  Tracing: %s\n", cfg.Observability.Exporter)
	}
	fmt.Fprintf(a.stdout, "  MCP transport: %s\n", cfg.MCP.Transport)

	return nil
}
