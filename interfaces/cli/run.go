package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/supportflow/application"
	"github.com/felixgeelhaar/supportflow/domain/config"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/infrastructure/backend"
)

// runOptions holds options for the run command.
type runOptions struct {
	input      state.Input
	inputPath  string
	answer     string
	timeout    time.Duration
	jsonOutput bool
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Process one support request",
		Long: `Run a support request through every stage and print the final payload.

The request is read from flags or from a YAML/JSON file. When no ticket id
is given one is generated. Answers to clarification questions can be
supplied up front with --answer.

Examples:
  # Run from flags
  supportflow run --customer "Ada Lovelace" --email ada@example.com \
    --priority high "I was charged twice, urgent refund please"

  # Run from a file and print JSON
  supportflow run --input ticket.yaml --json

  # Use a persistent checkpoint backend
  supportflow run -c supportflow.yaml --input ticket.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.input.Query = args[0]
			}
			return a.runRequest(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.input.CustomerName, "customer", "", "Customer name")
	cmd.Flags().StringVar(&opts.input.Email, "email", "", "Customer email")
	cmd.Flags().StringVar(&opts.input.Priority, "priority", "medium", "Priority (low, medium, high, critical)")
	cmd.Flags().StringVar(&opts.input.TicketID, "ticket", "", "Ticket id (generated when empty)")
	cmd.Flags().StringVarP(&opts.inputPath, "input", "i", "", "Read the request from a YAML or JSON file")
	cmd.Flags().StringVar(&opts.answer, "answer", "", "Customer answer to clarification questions")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Request timeout (overrides config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

// readInput overlays flag values on the contents of path.
func readInput(path string, flags state.Input) (state.Input, error) {
	var in state.Input
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
		if err != nil {
			return in, fmt.Errorf("failed to read input: %w", err)
		}
		if err := yaml.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("failed to parse input: %w", err)
		}
	}
	if flags.CustomerName != "" {
		in.CustomerName = flags.CustomerName
	}
	if flags.Email != "" {
		in.Email = flags.Email
	}
	if flags.Query != "" {
		in.Query = flags.Query
	}
	if flags.TicketID != "" {
		in.TicketID = flags.TicketID
	}
	if in.Priority == "" {
		in.Priority = flags.Priority
	}
	if in.TicketID == "" {
		in.TicketID = "TCK-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return in, nil
}

// runRequest processes one request.
func (a *App) runRequest(ctx context.Context, opts *runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.timeout > 0 {
		cfg.Engine.RequestTimeout = config.Duration(opts.timeout)
	}

	in, err := readInput(opts.inputPath, opts.input)
	if err != nil {
		return err
	}

	var answers backend.AnswerSource
	if opts.answer != "" {
		answers = backend.StaticAnswers(opts.answer)
	}

	rt, err := buildRuntime(ctx, cfg, answers, a.stderr)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	res := rt.engine.Process(ctx, in)
	return a.report(res, opts.jsonOutput)
}

// report prints a result and turns a failed request into an error.
func (a *App) report(res application.Result, jsonOutput bool) error {
	if jsonOutput {
		var out any = res.Payload
		if res.Failure != nil {
			out = res.Failure
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		a.printResult(res)
	}

	if !res.Succeeded() {
		return fmt.Errorf("request %s %s: %s", res.ThreadID, res.Status, res.Error)
	}
	return nil
}

func (a *App) printResult(res application.Result) {
	if res.Failure != nil {
		_, _ = fmt.Fprintf(a.stdout, "Request rejected\n")
		_, _ = fmt.Fprintf(a.stdout, "  Ticket: %s\n", res.ThreadID)
		_, _ = fmt.Fprintf(a.stdout, "  Error: %s\n", res.Failure.Error)
		return
	}

	_, _ = fmt.Fprintf(a.stdout, "Request processed\n")
	_, _ = fmt.Fprintf(a.stdout, "  Ticket: %s\n", res.ThreadID)
	_, _ = fmt.Fprintf(a.stdout, "  Status: %s\n", res.Status)
	if res.Branch != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Branch: %s\n", res.Branch)
	}
	if res.Error != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Error: %s\n", res.Error)
	}
	if res.Summary != nil {
		s := res.Summary
		_, _ = fmt.Fprintf(a.stdout, "  Stages completed: %d\n", s.StagesCompleted)
		_, _ = fmt.Fprintf(a.stdout, "  Solutions found: %d\n", s.SolutionsFound)
		_, _ = fmt.Fprintf(a.stdout, "  Actions taken: %d\n", s.ActionsTaken)
		_, _ = fmt.Fprintf(a.stdout, "  Processing time: %s\n", s.ProcessingTime)
	}
	if p := res.Payload; p != nil {
		_, _ = fmt.Fprintf(a.stdout, "  Final status: %s\n", p.Output.FinalStatus)
		_, _ = fmt.Fprintf(a.stdout, "  Best score: %g\n", p.Decisions.BestSolutionScore)
		if p.Decisions.EscalationReason != "" {
			_, _ = fmt.Fprintf(a.stdout, "  Reason: %s\n", p.Decisions.EscalationReason)
		}
		if p.Output.GeneratedResponse != "" {
			_, _ = fmt.Fprintf(a.stdout, "  Response: %s\n", p.Output.GeneratedResponse)
		}
	}
}
