// Package mcp exposes the decision ledger and approval workflow as Model
// Context Protocol tools using github.com/felixgeelhaar/mcp-go.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	mcpgo "github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

// Handler executes one tool call and returns its JSON result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Config configures the server.
type Config struct {
	// Name is the server name.
	Name string

	// Version is the server version.
	Version string

	// Instructions provides usage instructions for clients.
	Instructions string
}

// Server serves ledger tools over MCP.
type Server struct {
	srv   *mcpgo.Server
	sys   *api.System
	tools map[string]Handler
}

// NewServer creates a server exposing sys.
func NewServer(sys *api.System, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "decision-ledger"
	}
	info := mcpgo.ServerInfo{
		Name:         cfg.Name,
		Version:      cfg.Version,
		Description:  "Append-only decision ledger with two-person approvals",
		Capabilities: mcpgo.Capabilities{Tools: true},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	s := &Server{
		srv:   mcpgo.NewServer(info, opts...),
		sys:   sys,
		tools: make(map[string]Handler),
	}
	s.registerLedgerTools()
	s.registerApprovalTools()
	s.registerGatedTools()
	return s
}

func (s *Server) register(name, description string, h Handler) {
	s.tools[name] = h
	s.srv.Tool(name).
		Description(description).
		Handler(func(ctx context.Context, input json.RawMessage) (string, error) {
			return h(ctx, input)
		})
}

// Tools returns the registered tool names in sorted order.
func (s *Server) Tools() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes a tool directly, bypassing the transport.
func (s *Server) Call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	h, ok := s.tools[name]
	if !ok {
		return "", fault.NotFound("unknown tool: %s", name)
	}
	return h(ctx, input)
}

// Server returns the underlying mcp-go server.
func (s *Server) Server() *mcpgo.Server {
	return s.srv
}

// ServeStdio runs the server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP with SSE.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}

// typed adapts a function taking a decoded input struct.
func typed[In any, Out any](fn func(ctx context.Context, in In) (Out, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (string, error) {
		var in In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", fault.InvalidInput("invalid arguments: %v", err)
			}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(data), nil
	}
}
