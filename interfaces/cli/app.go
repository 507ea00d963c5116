// Package cli provides the supportflow command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	supportflow "github.com/felixgeelhaar/supportflow"
	"github.com/felixgeelhaar/supportflow/domain/config"
	infraconfig "github.com/felixgeelhaar/supportflow/infrastructure/config"
)

// Version information set at build time.
var (
	Version   = supportflow.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root       *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "supportflow",
		Short: "Staged customer support workflow",
		Long: `supportflow runs customer support requests through a fixed eleven-stage
workflow: intake, understanding, preparation, clarification, retrieval,
decision, ticket update, reply drafting, external actions and completion.

Each stage dispatches abilities to the Common or Atlas backend group and
the accumulated state is exported as a structured payload. Requests whose
best solution scores below 90 are escalated to a specialist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to configuration file (YAML or JSON)")

	// Add subcommands
	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newRunCmd(),
		app.newResumeCmd(),
		app.newCheckpointsCmd(),
		app.newStagesCmd(),
		app.newServeMCPCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	// Set up signal handling
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// loadConfig reads the --config file, or returns the defaults without one.
func (a *App) loadConfig() (config.AppConfig, error) {
	if a.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := infraconfig.NewLoader().LoadFile(a.configPath)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "supportflow version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
