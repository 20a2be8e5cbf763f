// internal/mcp/server_test.go
package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colebrumley/runtext/internal/state"
)

const testContexts = `
- name: home
  triggers:
    wifi: HomeNet
  actions:
    command: caffeinate -d
- name: office
  trigger_behavior: or
  triggers:
    wifi: CorpNet
    path: /Volumes/Work
  actions:
    command: rsync -a ~/Documents /Volumes/Work
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	tmpDir := t.TempDir()
	contextsPath := filepath.Join(tmpDir, "runtext.yml")
	if err := os.WriteFile(contextsPath, []byte(testContexts), 0600); err != nil {
		t.Fatal(err)
	}

	server, err := NewServer(contextsPath, filepath.Join(tmpDir, "history.db"))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)
	if server.server == nil {
		t.Error("NewServer() did not create the MCP server")
	}
}

func TestToolHandlers(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, decision := range []string{"enter", "leave", "enter"} {
		_, err := server.db.RecordTransition(state.Transition{
			Session:   "s1",
			Context:   "home",
			Trigger:   "wifi",
			Activity:  "active",
			Observed:  "HomeNet",
			Counter:   1,
			Decision:  decision,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordTransition() error = %v", err)
		}
	}

	if _, err := server.db.RecordTransition(state.Transition{
		Session: "s0", Context: "cafe", Trigger: "wifi", Activity: "active",
		Counter: 1, Decision: "enter", Timestamp: base.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("RecordTransition() error = %v", err)
	}

	t.Run("list_contexts", func(t *testing.T) {
		_, output, err := server.handleListContexts(ctx, nil, ListContextsInput{})
		if err != nil {
			t.Fatalf("handleListContexts() error = %v", err)
		}
		if output.Count != 2 {
			t.Fatalf("handleListContexts() count = %d, want 2", output.Count)
		}

		home := output.Contexts[0]
		if home.Name != "home" || home.TriggerBehavior != "and" {
			t.Errorf("unexpected first context: %+v", home)
		}
		if home.LastDecision != "enter" {
			t.Errorf("home last decision = %q, want enter", home.LastDecision)
		}

		office := output.Contexts[1]
		if office.TriggerBehavior != "or" {
			t.Errorf("office behavior = %q, want or", office.TriggerBehavior)
		}
		if len(office.Triggers) != 2 || office.Triggers[0] != "path" || office.Triggers[1] != "wifi" {
			t.Errorf("office triggers = %v, want [path wifi]", office.Triggers)
		}
		if office.LastDecision != "" {
			t.Errorf("office has no history, got decision %q", office.LastDecision)
		}

		if len(output.Retired) != 1 || output.Retired[0] != "cafe" {
			t.Errorf("retired = %v, want [cafe]", output.Retired)
		}
	})

	t.Run("context_history", func(t *testing.T) {
		_, output, err := server.handleHistory(ctx, nil, HistoryInput{Context: "home", Limit: 2})
		if err != nil {
			t.Fatalf("handleHistory() error = %v", err)
		}
		if output.Count != 2 {
			t.Fatalf("handleHistory() count = %d, want 2", output.Count)
		}
		if output.Transitions[0].Decision != "enter" || output.Transitions[1].Decision != "leave" {
			t.Errorf("history not newest first: %+v", output.Transitions)
		}
		if output.Transitions[0].Observed != "HomeNet" {
			t.Errorf("observed = %q, want HomeNet", output.Transitions[0].Observed)
		}
	})

	t.Run("context_history default limit", func(t *testing.T) {
		_, output, err := server.handleHistory(ctx, nil, HistoryInput{})
		if err != nil {
			t.Fatalf("handleHistory() error = %v", err)
		}
		if output.Count != 4 {
			t.Errorf("handleHistory() count = %d, want 4", output.Count)
		}
	})

	t.Run("context_history unknown context", func(t *testing.T) {
		_, output, err := server.handleHistory(ctx, nil, HistoryInput{Context: "nowhere"})
		if err != nil {
			t.Fatalf("handleHistory() error = %v", err)
		}
		if output.Count != 0 {
			t.Errorf("handleHistory() count = %d, want 0", output.Count)
		}
	})
}

func TestListContextsMissingConfig(t *testing.T) {
	server, err := NewServer(filepath.Join(t.TempDir(), "absent.yml"), filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer server.Close()

	if _, _, err := server.handleListContexts(context.Background(), nil, ListContextsInput{}); err == nil {
		t.Error("handleListContexts() should fail when the config file is missing")
	}
}
