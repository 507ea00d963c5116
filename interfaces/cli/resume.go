package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/supportflow/infrastructure/backend"
)

// newResumeCmd creates the resume command.
func (a *App) newResumeCmd() *cobra.Command {
	var (
		answer     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "resume <thread-id>",
		Short: "Resume an interrupted request from its checkpoint",
		Long: `Resume a request that failed or timed out. Processing continues with the
stage after the last one that finished. Requires a persistent checkpoint
backend (sqlite, postgres, redis or badger).

Examples:
  supportflow resume -c supportflow.yaml TCK-1A2B3C4D`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			var answers backend.AnswerSource
			if answer != "" {
				answers = backend.StaticAnswers(answer)
			}
			rt, err := buildRuntime(ctx, cfg, answers, a.stderr)
			if err != nil {
				return fmt.Errorf("failed to build runtime: %w", err)
			}
			defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

			return a.report(rt.engine.Resume(ctx, args[0]), jsonOutput)
		},
	}

	cmd.Flags().StringVar(&answer, "answer", "", "Customer answer to clarification questions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")
	return cmd
}

// newCheckpointsCmd creates the checkpoints command.
func (a *App) newCheckpointsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "checkpoints [thread-id]",
		Short: "List checkpoints or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			rt, err := buildRuntime(ctx, cfg, nil, a.stderr)
			if err != nil {
				return fmt.Errorf("failed to build runtime: %w", err)
			}
			defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

			store := rt.engine.Checkpoints()
			if len(args) == 1 {
				cp, err := store.Load(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cp)
			}

			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(a.stdout).Encode(ids)
			}
			if len(ids) == 0 {
				_, _ = fmt.Fprintf(a.stdout, "No checkpoints.\n")
				return nil
			}
			for _, id := range ids {
				cp, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.stdout, "%-20s %-10s last=%-10s next=%s\n", id, cp.Status, cp.LastStage, cp.NextStage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output thread ids as JSON")
	return cmd
}
