// Package inspector exports the workflow stage graph for visualization.
package inspector

import (
	"errors"

	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/statemachine"
)

// Format is a graph output format.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
)

// ErrInvalidFormat indicates an unsupported export format.
var ErrInvalidFormat = errors.New("invalid export format")

// Edge labels for the non-branch transitions.
const (
	LabelSuccess = "on success"
	LabelError   = "on error"
)

// Node is a state of the exported graph.
type Node struct {
	ID       string        `json:"id"`
	Mode     workflow.Mode `json:"mode,omitempty"`
	Terminal bool          `json:"terminal,omitempty"`
}

// Edge is a transition of the exported graph.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Graph is the exported state graph of a workflow table.
type Graph struct {
	Initial  string   `json:"initial"`
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Terminal []string `json:"terminal"`
}

// GraphOption configures BuildGraph.
type GraphOption func(*graphConfig)

type graphConfig struct {
	failureEdges bool
}

// WithFailureEdges adds an edge from every stage to FAILED.
func WithFailureEdges(enabled bool) GraphOption {
	return func(c *graphConfig) {
		c.failureEdges = enabled
	}
}

// BuildGraph derives the state graph driven by the engine for the given stages.
// DECIDE reaches its successor through two labelled edges.
func BuildGraph(stages []workflow.Stage, opts ...GraphOption) Graph {
	var cfg graphConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	done := string(statemachine.StateDone)
	failed := string(statemachine.StateFailed)

	g := Graph{Terminal: []string{done, failed}}
	if len(stages) > 0 {
		g.Initial = string(stages[0].Name)
	}

	for i, s := range stages {
		id := string(s.Name)
		g.Nodes = append(g.Nodes, Node{ID: id, Mode: s.Mode})

		next := done
		if i+1 < len(stages) {
			next = string(stages[i+1].Name)
		}

		switch {
		case s.Name == workflow.StageDecide:
			g.Edges = append(g.Edges,
				Edge{From: id, To: next, Label: statemachine.BranchEscalate},
				Edge{From: id, To: next, Label: statemachine.BranchContinue},
			)
		case next == done:
			g.Edges = append(g.Edges, Edge{From: id, To: next, Label: LabelSuccess})
		default:
			g.Edges = append(g.Edges, Edge{From: id, To: next})
		}

		if cfg.failureEdges {
			g.Edges = append(g.Edges, Edge{From: id, To: failed, Label: LabelError})
		}
	}

	g.Nodes = append(g.Nodes,
		Node{ID: done, Terminal: true},
		Node{ID: failed, Terminal: true},
	)
	return g
}
