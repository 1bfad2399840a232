// Package testutil provides test helpers shared by hookrelay's package tests:
// handler scripts, config files and sample events on temporary directories.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// RequireShell skips the test when shell handlers cannot run
func RequireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell handlers are not available on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// WriteHandler writes a handler script under dir and returns the name to use
// as a channel's script reference
func WriteHandler(t *testing.T, dir, name, body string) string {
	t.Helper()
	WriteFile(t, dir, name, body)
	return name
}

// Common handler bodies
const (
	// RecordStdin saves the event document to <channel>.out
	RecordStdin = "cat > \"$HOOKRELAY_CHANNEL.out\"\n"
	// RecordArgs saves the handler path ($0) followed by the command line
	// arguments to <channel>.args, one per line
	RecordArgs = "printf '%s\\n' \"$0\" \"$@\" > \"$HOOKRELAY_CHANNEL.args\"\n"
	// Hang never exits on its own
	Hang = "sleep 30\n"
)

// Event builds a minimal hook event document
func Event(eventType, tool string) []byte {
	if tool == "" {
		return []byte(`{"hook_event_name":"` + eventType + `"}`)
	}
	return []byte(`{"hook_event_name":"` + eventType + `","tool_name":"` + tool + `"}`)
}

// ReadOutput returns the contents of dir/name, or "" when it does not exist
func ReadOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}
