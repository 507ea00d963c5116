// Package mcp exposes the workflow's ability backends over the Model
// Context Protocol using github.com/felixgeelhaar/mcp-go.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	mcpserver "github.com/felixgeelhaar/mcp-go/server"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

// Built-in tool names.
const (
	ToolDescribe = "describe_workflow"
	ToolProcess  = "process_ticket"
)

// ErrUnknownTool is returned by CallTool for unregistered names.
var ErrUnknownTool = errors.New("mcp: unknown tool")

// ProcessFunc runs the whole workflow for one request.
type ProcessFunc func(ctx context.Context, in state.Input) (ProcessReply, error)

// ProcessReply is the process_ticket result. Payload is partial unless
// Status is completed; Error carries the reason when it is not.
type ProcessReply struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
	Branch   string `json:"branch,omitempty"`
	Error    string `json:"error,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Name         string
	Version      string
	Instructions string

	Table   *workflow.Table
	Clients []ability.Client

	// Process, when set, is exposed as the process_ticket tool.
	Process ProcessFunc
}

type toolHandler func(ctx context.Context, input json.RawMessage) (string, error)

// Server registers one MCP tool per ability plus the workflow tools.
type Server struct {
	srv      *mcpgo.Server
	table    *workflow.Table
	clients  map[workflow.Backend]ability.Client
	handlers map[string]toolHandler
}

// envelope wraps every ability result returned to MCP callers.
type envelope struct {
	InvocationID string         `json:"invocation_id"`
	Result       ability.Result `json:"result"`
}

// NewServer builds the server. Abilities whose backend has no client are
// skipped.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Table == nil {
		cfg.Table = workflow.DefaultTable()
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}
	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: "Customer support workflow abilities",
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}, opts...)

	s := &Server{
		srv:      srv,
		table:    cfg.Table,
		clients:  make(map[workflow.Backend]ability.Client, len(cfg.Clients)),
		handlers: make(map[string]toolHandler),
	}
	for _, c := range cfg.Clients {
		s.clients[c.Backend()] = c
	}

	for _, backend := range workflow.Backends() {
		client, ok := s.clients[backend]
		if !ok {
			continue
		}
		for _, a := range cfg.Table.AbilitiesFor(backend) {
			s.register(a.Name, fmt.Sprintf("[%s] %s", a.Backend, a.Description), s.abilityHandler(a, client))
		}
	}

	info := cfg.Table.Describe(cfg.Name, cfg.Version)
	s.register(ToolDescribe, "Describe the stages and abilities of the workflow",
		func(context.Context, json.RawMessage) (string, error) {
			b, err := json.Marshal(info)
			return string(b), err
		})

	if cfg.Process != nil {
		s.register(ToolProcess, "Run a support request through every stage and return the final payload",
			processHandler(cfg.Process))
	}

	return s
}

func (s *Server) register(name, description string, h toolHandler) {
	s.handlers[name] = h
	s.srv.Tool(name).
		Description(description).
		Handler(h)
}

func (s *Server) abilityHandler(a workflow.Ability, client ability.Client) toolHandler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		in := ability.Context{}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("decode %s input: %w", a.Name, err)
			}
		}

		if err := client.Connect(ctx); err != nil {
			return "", err
		}
		defer func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }()

		result, err := client.Execute(ctx, a, in)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(envelope{InvocationID: uuid.NewString(), Result: result})
		if err != nil {
			return "", fmt.Errorf("encode %s result: %w", a.Name, err)
		}
		return string(b), nil
	}
}

func processHandler(process ProcessFunc) toolHandler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in state.Input
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("decode request: %w", err)
		}
		out, err := process(ctx, in)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(out)
		return string(b), err
	}
}

// Tools returns the registered tool names, sorted.
func (s *Server) Tools() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool invokes a registered tool directly, bypassing the transport.
func (s *Server) CallTool(ctx context.Context, name string, input json.RawMessage) (string, error) {
	h, ok := s.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return h(ctx, input)
}

// Server returns the underlying mcp-go server.
func (s *Server) Server() *mcpgo.Server {
	return s.srv
}

// Use adds middleware to the server.
func (s *Server) Use(middlewares ...mcpserver.Middleware) {
	s.srv.Use(middlewares...)
}

// ServeStdio runs the server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}
