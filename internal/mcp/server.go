// internal/mcp/server.go
package mcp

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultHistoryLimit = 20

// Server exposes the configured contexts and their transition history as
// MCP tools.
type Server struct {
	contextsPath string
	db           *state.DB
	server       *mcp.Server
}

// ListContextsInput is the input schema for the list_contexts tool
type ListContextsInput struct{}

// ListContextsOutput is the output schema for the list_contexts tool
type ListContextsOutput struct {
	Contexts []ContextSummary `json:"contexts"`
	Count    int              `json:"count"`
	// Retired names contexts that have history but are no longer configured.
	Retired []string `json:"retired,omitempty"`
}

// ContextSummary describes one configured context
type ContextSummary struct {
	Name            string   `json:"name"`
	TriggerBehavior string   `json:"trigger_behavior"`
	Triggers        []string `json:"triggers"`
	Actions         []string `json:"actions"`
	LastDecision    string   `json:"last_decision,omitempty"`
	LastTransition  string   `json:"last_transition,omitempty"`
}

// HistoryInput is the input schema for the context_history tool
type HistoryInput struct {
	Context string `json:"context,omitempty" jsonschema:"Context name to filter by; empty returns all contexts"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of transitions to return (default 20)"`
}

// HistoryOutput is the output schema for the context_history tool
type HistoryOutput struct {
	Transitions []TransitionResult `json:"transitions"`
	Count       int                `json:"count"`
}

// TransitionResult is a single evaluated event in history results
type TransitionResult struct {
	ID        int64  `json:"id"`
	Context   string `json:"context"`
	Trigger   string `json:"trigger"`
	Activity  string `json:"activity"`
	Observed  string `json:"observed,omitempty"`
	Counter   int    `json:"counter"`
	Decision  string `json:"decision"`
	Errors    string `json:"errors,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewServer creates an MCP server reading contexts from contextsPath and
// history from the database at dbPath.
func NewServer(contextsPath, dbPath string) (*Server, error) {
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Server{contextsPath: contextsPath, db: db}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "runtext",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_contexts",
		Description: "List the configured contexts with their trigger behavior, triggers, actions and the most recent decision taken for each.",
	}, s.handleListContexts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "context_history",
		Description: "Return recent trigger events and the enter/leave decisions they caused, newest first.",
	}, s.handleHistory)

	s.server = server
	return s, nil
}

func (s *Server) handleListContexts(ctx context.Context, req *mcp.CallToolRequest, input ListContextsInput) (*mcp.CallToolResult, ListContextsOutput, error) {
	contexts, err := config.LoadContexts(s.contextsPath)
	if err != nil {
		return nil, ListContextsOutput{}, fmt.Errorf("failed to load contexts: %w", err)
	}

	summaries := make([]ContextSummary, len(contexts))
	for i, c := range contexts {
		summaries[i] = ContextSummary{
			Name:            c.Name,
			TriggerBehavior: c.TriggerBehavior.String(),
			Triggers:        c.TriggerNames(),
			Actions:         c.ActionNames(),
		}
		last, err := s.db.LastTransition(c.Name)
		if err != nil {
			return nil, ListContextsOutput{}, fmt.Errorf("failed to read history: %w", err)
		}
		if last != nil {
			summaries[i].LastDecision = last.Decision
			summaries[i].LastTransition = last.Timestamp.Format(time.RFC3339)
		}
	}

	recorded, err := s.db.Contexts()
	if err != nil {
		return nil, ListContextsOutput{}, fmt.Errorf("failed to read history: %w", err)
	}
	var retired []string
	for _, name := range recorded {
		if !slices.ContainsFunc(contexts, func(c config.Context) bool { return c.Name == name }) {
			retired = append(retired, name)
		}
	}

	return nil, ListContextsOutput{
		Contexts: summaries,
		Count:    len(summaries),
		Retired:  retired,
	}, nil
}

func (s *Server) handleHistory(ctx context.Context, req *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := s.db.GetHistory(input.Context, limit)
	if err != nil {
		return nil, HistoryOutput{}, fmt.Errorf("failed to query history: %w", err)
	}

	results := make([]TransitionResult, len(records))
	for i, t := range records {
		results[i] = TransitionResult{
			ID:        t.ID,
			Context:   t.Context,
			Trigger:   t.Trigger,
			Activity:  t.Activity,
			Observed:  t.Observed,
			Counter:   t.Counter,
			Decision:  t.Decision,
			Errors:    t.Errors,
			Timestamp: t.Timestamp.Format(time.RFC3339),
		}
	}

	return nil, HistoryOutput{
		Transitions: results,
		Count:       len(results),
	}, nil
}

// Run starts the MCP server on stdio
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.db.Close()
}
