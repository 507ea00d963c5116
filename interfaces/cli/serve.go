package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/supportflow/application"
	"github.com/felixgeelhaar/supportflow/domain/config"
	"github.com/felixgeelhaar/supportflow/domain/state"
	infraconfig "github.com/felixgeelhaar/supportflow/infrastructure/config"
	"github.com/felixgeelhaar/supportflow/infrastructure/logging"
	"github.com/felixgeelhaar/supportflow/infrastructure/mcp"
)

const mcpInstructions = `Each backend ability is exposed as a tool taking the ability context as
JSON. Use describe_workflow to list stages, and process_ticket to run a full
request (customer_name, email, query, priority, ticket_id).`

// newServeMCPCmd creates the serve-mcp command.
func (a *App) newServeMCPCmd() *cobra.Command {
	var transport, addr string

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Expose the abilities as MCP tools",
		Long: `Serve every Common and Atlas ability, plus describe_workflow and
process_ticket, over the Model Context Protocol.

With a config file the logging section is reloaded when the file changes.

Examples:
  supportflow serve-mcp
  supportflow serve-mcp -c supportflow.yaml --transport http --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serveMCP(cmd.Context(), transport, addr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "stdio or http (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for http (overrides config)")
	return cmd
}

func (a *App) serveMCP(ctx context.Context, transport, addr string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if transport != "" {
		cfg.MCP.Transport = transport
	}
	if addr != "" {
		cfg.MCP.Addr = addr
	}

	rt, err := buildRuntime(ctx, cfg, nil, a.stderr)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	if a.configPath != "" {
		if err := a.watchConfig(ctx); err != nil {
			return err
		}
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Name:         cfg.Agent.Name,
		Version:      cfg.Agent.Version,
		Instructions: mcpInstructions,
		Clients:      rt.clients,
		Process:      processTicket(rt.engine),
	})

	logging.Info().
		Add(logging.Component("mcp")).
		Add(logging.Str("transport", cfg.MCP.Transport)).
		Add(logging.Count("tools", len(srv.Tools()))).
		Msg("serving")

	if cfg.MCP.Transport == "http" {
		return srv.ServeHTTP(ctx, cfg.MCP.Addr)
	}
	return srv.ServeStdio(ctx)
}

// processTicket reports the graph status with the payload so callers can
// tell a partial payload from a completed one.
func processTicket(engine *application.Engine) mcp.ProcessFunc {
	return func(ctx context.Context, in state.Input) (mcp.ProcessReply, error) {
		res := engine.Process(ctx, in)
		reply := mcp.ProcessReply{
			ThreadID: res.ThreadID,
			Status:   string(res.Status),
			Branch:   res.Branch,
			Error:    res.Error,
		}
		switch {
		case res.Failure != nil:
			reply.Payload = res.Failure
		case res.Payload != nil:
			reply.Payload = res.Payload
		}
		return reply, nil
	}
}

// watchConfig re-applies the logging section whenever the config file changes.
func (a *App) watchConfig(ctx context.Context) error {
	w, err := infraconfig.NewWatcher(a.configPath, infraconfig.NewLoader(),
		infraconfig.WithErrorHandler(func(err error) {
			logging.Warn().
				Add(logging.Component("config")).
				Add(logging.ErrorField(err)).
				Msg("config reload failed")
		}),
	)
	if err != nil {
		return err
	}
	w.OnChange(func(cfg config.AppConfig) {
		setupLogging(cfg.Logging, a.stderr)
		logging.Info().
			Add(logging.Component("config")).
			Add(logging.Str("level", cfg.Logging.Level)).
			Msg("configuration reloaded")
	})
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Error().Add(logging.Component("config")).Add(logging.ErrorField(err)).Msg("config watcher stopped")
		}
	}()
	return nil
}
