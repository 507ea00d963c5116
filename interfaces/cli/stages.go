package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/supportflow/application"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/inspector"
)

// newStagesCmd creates the stages command.
func (a *App) newStagesCmd() *cobra.Command {
	var (
		jsonOutput bool
		format     string
		failures   bool
	)

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the workflow stages and their abilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			engine, err := application.NewEngineWithOptions(application.WithAgent(cfg.Agent.Name, cfg.Agent.Version))
			if err != nil {
				return err
			}
			info := engine.Info()

			if format != "" {
				return a.printGraph(info, inspector.Format(format), failures)
			}
			if jsonOutput {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			a.printStages(info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&format, "graph", "", "Export the stage graph (json, mermaid, dot)")
	cmd.Flags().BoolVar(&failures, "failures", false, "Include failure edges in the graph")
	return cmd
}

func (a *App) printStages(info workflow.Info) {
	_, _ = fmt.Fprintf(a.stdout, "%s v%s\n\n", info.Name, info.Version)
	for i, s := range info.Stages {
		names := make([]string, 0, len(s.Abilities))
		for _, ab := range s.Abilities {
			names = append(names, fmt.Sprintf("%s[%s]", ab.Name, ab.Backend))
		}
		_, _ = fmt.Fprintf(a.stdout, "%2d. %-10s %-17s %s\n", i+1, s.Name, s.Mode, strings.Join(names, ", "))
	}

	counts := describeBackends(info)
	_, _ = fmt.Fprintf(a.stdout, "\nAbilities: %d common, %d atlas\n",
		counts[workflow.BackendCommon], counts[workflow.BackendAtlas])
}

func (a *App) printGraph(info workflow.Info, format inspector.Format, failures bool) error {
	f, err := inspector.NewFormatter(format)
	if err != nil {
		return err
	}
	out, err := f.Format(inspector.BuildGraph(info.Stages, inspector.WithFailureEdges(failures)))
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}
