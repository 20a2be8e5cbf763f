// internal/action/command_test.go
package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func node(t *testing.T, s string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(s), &doc))
	require.NotEmpty(t, doc.Content)
	return *doc.Content[0]
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"rclone -V", []string{"rclone", "-V"}},
		{"  rsync  -a   src dst  ", []string{"rsync", "-a", "src", "dst"}},
		{`echo "two words"`, []string{"echo", `"two`, `words"`}},
		{"echo $HOME *", []string{"echo", "$HOME", "*"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.line)
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.line)
			continue
		}
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestNewCommand(t *testing.T) {
	c, err := NewCommand(node(t, "rclone sync src dst"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rclone", "sync", "src", "dst"}, c.enter)
	assert.Empty(t, c.leave)

	c, err = NewCommand(node(t, "{enter: caffeinate -d, leave: pmset displaysleepnow}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"caffeinate", "-d"}, c.enter)
	assert.Equal(t, []string{"pmset", "displaysleepnow"}, c.leave)
}

func TestNewCommandInvalid(t *testing.T) {
	for _, input := range []string{
		`""`,
		"{leave: echo bye}",
		"[echo, hi]",
		"{enter: [a, b]}",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := NewCommand(node(t, input))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestCommandLeaveWithoutEnter(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "left")
	c, err := NewCommand(node(t, "{enter: sleep 30, leave: touch "+marker+"}"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Leave(context.Background()))
	_, err = os.Stat(marker)
	assert.NoError(t, err, "leave command should have run")
}

func TestCommandLeaveIsIdempotent(t *testing.T) {
	c, err := NewCommand(node(t, "sleep 30"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Leave(context.Background()))
	require.NoError(t, c.Leave(context.Background()))
}

func TestCommandSpawnFailure(t *testing.T) {
	c, err := NewCommand(node(t, "/nonexistent/runtext-test-binary"))
	require.NoError(t, err)
	defer c.Close()

	err = c.Enter(context.Background())
	assert.ErrorIs(t, err, ErrSpawn)
	_, running := c.PID()
	assert.False(t, running)
}

func TestCommandLeaveCommandFailure(t *testing.T) {
	c, err := NewCommand(node(t, "{enter: sleep 30, leave: false}"))
	require.NoError(t, err)
	defer c.Close()

	assert.Error(t, c.Leave(context.Background()))
}

func TestNewAction(t *testing.T) {
	a, err := New(" command ", node(t, "true"))
	require.NoError(t, err)
	assert.Equal(t, "command", a.Name())
	require.NoError(t, a.Close())

	a, err = New("mqtt", node(t, "{broker: localhost, topic: t, enter: on}"))
	require.NoError(t, err)
	assert.Equal(t, "mqtt", a.Name())
}

func TestNewActionUnknownName(t *testing.T) {
	_, err := New("notify", node(t, "hello"))
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.ErrorIs(t, err, config.ErrUnknownIdentifier)
	assert.Contains(t, err.Error(), "notify")
}

func TestContextName(t *testing.T) {
	ctx := WithContextName(context.Background(), "backup")
	assert.Equal(t, "backup", ContextName(ctx))
	assert.Empty(t, ContextName(context.Background()))
}
