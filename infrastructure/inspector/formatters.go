package inspector

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/statemachine"
)

// Formatter renders a graph in one format.
type Formatter interface {
	Format(g Graph) ([]byte, error)
	FormatType() Format
}

// NewFormatter returns the formatter for format.
func NewFormatter(format Format) (Formatter, error) {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatMermaid:
		return NewMermaidFormatter(), nil
	case FormatDOT:
		return NewDOTFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// JSONFormatter formats a graph as indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format formats the graph as JSON.
func (f *JSONFormatter) Format(g Graph) ([]byte, error) {
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// FormatType returns the format type.
func (f *JSONFormatter) FormatType() Format {
	return FormatJSON
}

// MermaidFormatter formats a graph as a Mermaid state diagram.
type MermaidFormatter struct{}

// NewMermaidFormatter creates a new Mermaid formatter.
func NewMermaidFormatter() *MermaidFormatter {
	return &MermaidFormatter{}
}

// Format formats the graph as Mermaid.
func (f *MermaidFormatter) Format(g Graph) ([]byte, error) {
	var b strings.Builder

	b.WriteString("stateDiagram-v2\n")
	if g.Initial != "" {
		fmt.Fprintf(&b, "  [*] --> %s\n", g.Initial)
	}

	for _, e := range g.Edges {
		if e.Label != "" {
			fmt.Fprintf(&b, "  %s --> %s: %s\n", e.From, e.To, e.Label)
		} else {
			fmt.Fprintf(&b, "  %s --> %s\n", e.From, e.To)
		}
	}

	for _, t := range g.Terminal {
		fmt.Fprintf(&b, "  %s --> [*]\n", t)
	}

	b.WriteString("\n")
	for _, n := range g.Nodes {
		if note := modeNote(n.Mode); note != "" {
			fmt.Fprintf(&b, "  note right of %s: %s\n", n.ID, note)
		}
	}

	return []byte(b.String()), nil
}

// FormatType returns the format type.
func (f *MermaidFormatter) FormatType() Format {
	return FormatMermaid
}

// DOTFormatter formats a graph as Graphviz DOT.
type DOTFormatter struct{}

// NewDOTFormatter creates a new DOT formatter.
func NewDOTFormatter() *DOTFormatter {
	return &DOTFormatter{}
}

// Format formats the graph as DOT.
func (f *DOTFormatter) Format(g Graph) ([]byte, error) {
	var b strings.Builder

	b.WriteString("digraph SupportWorkflow {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")
	b.WriteString("\n")

	for _, n := range g.Nodes {
		attrs := []string{fmt.Sprintf(`label="%s"`, n.ID)}

		switch {
		case n.Terminal && n.ID == string(statemachine.StateDone):
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor=lightgreen")
		case n.Terminal:
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor=lightcoral")
		case n.Mode == workflow.ModeHuman:
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor=lightyellow")
		case n.Mode == workflow.ModeNonDeterministic:
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor=lightblue")
		}

		fmt.Fprintf(&b, "  %s [%s];\n", sanitizeDOTID(n.ID), strings.Join(attrs, ", "))
	}

	b.WriteString("\n")

	for _, e := range g.Edges {
		attrStr := ""
		if e.Label != "" {
			attrStr = fmt.Sprintf(` [label="%s"]`, e.Label)
		}
		fmt.Fprintf(&b, "  %s -> %s%s;\n", sanitizeDOTID(e.From), sanitizeDOTID(e.To), attrStr)
	}

	b.WriteString("}\n")

	return []byte(b.String()), nil
}

// FormatType returns the format type.
func (f *DOTFormatter) FormatType() Format {
	return FormatDOT
}

func modeNote(m workflow.Mode) string {
	switch m {
	case workflow.ModeHuman:
		return "waits on the customer"
	case workflow.ModeNonDeterministic:
		return "scores solutions"
	default:
		return ""
	}
}

func sanitizeDOTID(s string) string {
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*MermaidFormatter)(nil)
	_ Formatter = (*DOTFormatter)(nil)
)
