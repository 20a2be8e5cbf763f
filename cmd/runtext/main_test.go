// cmd/runtext/main_test.go
package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/state"
)

const validContexts = `
- name: home
  triggers:
    wifi: HomeNet
  actions:
    command: caffeinate -d
- name: backup
  trigger_behavior: or
  triggers:
    wifi: HomeNet
    path: /Volumes/Backup
  actions:
    command: rsync -a /Users/me /Volumes/Backup
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtext.yml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, validContexts)

	out, err := execute(t, "validate", path)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "valid    home (and: wifi -> command)") {
		t.Errorf("missing home line in output:\n%s", out)
	}
	if !strings.Contains(out, "Validated 2 contexts") {
		t.Errorf("missing summary in output:\n%s", out)
	}
}

func TestValidateCommandUnknownTrigger(t *testing.T) {
	path := writeConfig(t, `
name: home
triggers:
  bluetooth: headphones
actions:
  command: caffeinate -d
`)

	out, err := execute(t, "validate", "--config", path)
	if err == nil {
		t.Fatal("validate should fail for an unknown trigger")
	}
	if !errors.Is(err, config.ErrUnknownIdentifier) {
		t.Errorf("expected ErrUnknownIdentifier, got %v", err)
	}
	if !strings.Contains(out, "invalid  home") {
		t.Errorf("expected the context to be reported invalid:\n%s", out)
	}
}

func TestValidateCommandMissingActions(t *testing.T) {
	path := writeConfig(t, "name: home\ntriggers:\n  wifi: HomeNet\n")

	_, err := execute(t, "validate", path)
	if !errors.Is(err, config.ErrMissingActions) {
		t.Errorf("expected ErrMissingActions, got %v", err)
	}
}

func TestListCommand(t *testing.T) {
	path := writeConfig(t, validContexts)

	out, err := execute(t, "list", path)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got:\n%s", out)
	}
	if fields := strings.Fields(lines[3]); fields[0] != "backup" || fields[1] != "or" || fields[2] != "path,wifi" {
		t.Errorf("unexpected backup row: %q", lines[3])
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	settings := filepath.Join(dir, "settings.yml")
	if err := os.WriteFile(settings, []byte("history:\n  enabled: true\n  path: "+dbPath+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	db, err := state.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"home", "office"} {
		if _, err := db.RecordTransition(state.Transition{
			Session: "s", Context: name, Trigger: "wifi", Activity: "active",
			Observed: name + "-net", Counter: 1, Decision: "enter", Timestamp: time.Now(),
		}); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	out, err := execute(t, "history", "--settings", settings, "--context", "office")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "office-net") {
		t.Errorf("expected the office transition:\n%s", out)
	}
	if strings.Contains(out, "home-net") {
		t.Errorf("history should be filtered to office:\n%s", out)
	}
}

func TestAcquirePIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "runtext.pid")

	release, err := acquirePIDFile(pidPath)
	if err != nil {
		t.Fatalf("acquirePIDFile() error = %v", err)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("reading pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Error("pid file is empty")
	}

	if _, err := acquirePIDFile(pidPath); !errors.Is(err, errAlreadyRunning) {
		t.Errorf("second acquire should fail with errAlreadyRunning, got %v", err)
	}

	release()
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("pid file should be removed on release")
	}

	release, err = acquirePIDFile(pidPath)
	if err != nil {
		t.Fatalf("acquire after release error = %v", err)
	}
	release()
}

func TestContextsPath(t *testing.T) {
	opts := &rootOptions{configPath: "/etc/runtext.yml"}
	if got := opts.contextsPath(nil); got != "/etc/runtext.yml" {
		t.Errorf("contextsPath(nil) = %q", got)
	}
	if got := opts.contextsPath([]string{"/tmp/other.yml"}); got != "/tmp/other.yml" {
		t.Errorf("contextsPath(arg) = %q", got)
	}
}
