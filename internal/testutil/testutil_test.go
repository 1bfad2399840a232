// Package testutil_test tests the shared file and event helpers.
// Related: internal/testutil/testutil.go
// Tags: testutil, helpers
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWriteFileAndReadOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := WriteFile(t, dir, "nested/x.sh", "exit 0\n")

	assert.Equal(t, filepath.Join(dir, "nested", "x.sh"), path)
	assert.Equal(t, "exit 0\n", ReadOutput(t, dir, "nested/x.sh"))
	assert.Empty(t, ReadOutput(t, dir, "absent"))
}

func TestEvent(t *testing.T) {
	t.Parallel()

	stop := Event("Stop", "")
	assert.Equal(t, "Stop", gjson.GetBytes(stop, "hook_event_name").String())
	assert.False(t, gjson.GetBytes(stop, "tool_name").Exists())

	pre := Event("PreToolUse", "Bash")
	assert.Equal(t, "Bash", gjson.GetBytes(pre, "tool_name").String())
}

func TestRecordArgs_IncludesHandlerPath(t *testing.T) {
	t.Parallel()
	RequireShell(t)

	dir := t.TempDir()
	script := WriteFile(t, dir, "voice.sh", RecordArgs)

	cmd := exec.Command("sh", script, "Bash", "PreToolUse", "--loud")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HOOKRELAY_CHANNEL=voice")
	require.NoError(t, cmd.Run())

	lines := strings.Split(strings.TrimSpace(ReadOutput(t, dir, "voice.args")), "\n")
	assert.Equal(t, []string{script, "Bash", "PreToolUse", "--loud"}, lines)
}
