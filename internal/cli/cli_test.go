// Package cli_test tests the hookrelay commands end to end: dispatch with
// stdin and positional fallbacks, dry-run check output, channel listing,
// activity history, single-channel test runs, and version output.
// Related: internal/cli/*.go
// Tags: cli, dispatch, check, channels, history, version
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ariel-frischer/hookrelay/internal/testutil"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// result holds the captured streams of one command run
type result struct {
	stdout string
	stderr string
	err    error
}

func execute(stdin string, args ...string) result {
	return executeWithInput(strings.NewReader(stdin), args...)
}

func executeWithInput(in io.Reader, args ...string) result {
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(in)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// fixture writes a config with sound (Stop), toast (Stop disabled) and a
// failing bot channel, plus their handler scripts. quiet enables a
// 23:00-07:00 quiet-hours window that only admits bot.
func fixture(t *testing.T, quiet bool) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()

	testutil.WriteHandler(t, dir, "sound.sh", testutil.RecordStdin)
	testutil.WriteHandler(t, dir, "toast.sh", testutil.RecordStdin)
	testutil.WriteHandler(t, dir, "bot.sh", "echo no token >&2\nexit 2\n")

	cfg := fmt.Sprintf(`plugins:
  sound:
    script: sound.sh
    events:
      Stop: true
      PreToolUse: true
  toast:
    enabled: true
    script: toast.sh
    events:
      Stop: false
  bot:
    enabled: true
    script: bot.sh
    events:
      Notification: true
quiet_hours:
  enabled: %t
  start: "23:00"
  end: "07:00"
  allow: [bot]
logging:
  enabled: true
  file: %s
`, quiet, filepath.Join(dir, "activity.log"))

	cfgPath = testutil.WriteFile(t, dir, "config.yaml", cfg)
	return dir, cfgPath
}

func TestDispatch_RunsMatchingChannels(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir, cfgPath := fixture(t, false)
	payload := `{"hook_event_name":"Stop","tool_name":"Bash","session_id":"s-1"}`

	res := execute(payload, "dispatch", "--config", cfgPath)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)

	got, err := os.ReadFile(filepath.Join(dir, "sound.out"))
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	assert.NoFileExists(t, filepath.Join(dir, "toast.out"))

	hist := execute("", "history", "--config", cfgPath)
	require.NoError(t, hist.err)
	assert.Contains(t, hist.stdout, "Stop")
	assert.Contains(t, hist.stdout, "sound=ran")
	assert.Contains(t, hist.stdout, "toast=skipped_filtered")
	assert.Contains(t, hist.stdout, "bot=skipped_filtered")
}

func TestDispatch_PositionalFallbacks(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir, cfgPath := fixture(t, false)

	res := execute("", "dispatch", "--config", cfgPath, "Bash", "PreToolUse")
	require.NoError(t, res.err)

	got, err := os.ReadFile(filepath.Join(dir, "sound.out"))
	require.NoError(t, err)
	assert.Empty(t, string(got))
}

func TestDispatch_ChannelFailureKeepsExitZero(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	_, cfgPath := fixture(t, false)

	res := execute(`{"hook_event_name":"Notification"}`, "dispatch", "--config", cfgPath, "--verbose")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "channel failed")
	assert.Contains(t, res.stderr, "[FAIL] bot ran: exit status 2")
	assert.Contains(t, res.stderr, "no token")
}

func TestDispatch_MissingConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	res := execute(`{"hook_event_name":"Stop"}`, "dispatch", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "using default configuration")
	assert.Empty(t, res.stdout)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestDispatch_StdinReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	res := executeWithInput(failingReader{}, "dispatch", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "reading event from stdin")
}

func TestDispatch_DebugLogging(t *testing.T) {
	t.Parallel()

	_, cfgPath := fixture(t, false)

	res := execute("not json", "dispatch", "--config", cfgPath, "--debug")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "dispatch complete")
	assert.Contains(t, res.stderr, "Unknown")
}

func TestCheck_ShowsDecisionsWithoutRunning(t *testing.T) {
	t.Parallel()

	dir, cfgPath := fixture(t, false)

	res := execute(`{"hook_event_name":"Stop","tool_name":"Bash"}`, "check", "--config", cfgPath, "--at", "12:00")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Config: "+cfgPath)
	assert.Contains(t, res.stdout, "tool=Bash")
	assert.Regexp(t, `sound\s+ran\s+sh .*sound\.sh`, res.stdout)
	assert.Regexp(t, `toast\s+skipped_filtered`, res.stdout)
	assert.Regexp(t, `bot\s+skipped_filtered`, res.stdout)
	assert.NoFileExists(t, filepath.Join(dir, "sound.out"))

	lines := strings.Split(res.stdout, "\n")
	var order []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) > 1 && strings.HasPrefix(line, "  ") {
			order = append(order, fields[0])
		}
	}
	assert.Equal(t, []string{"sound", "toast", "bot"}, order)
}

func TestCheck_QuietHours(t *testing.T) {
	t.Parallel()

	_, cfgPath := fixture(t, true)

	res := execute("", "check", "--config", cfgPath, "--at", "02:00", "", "Stop")
	require.NoError(t, res.err)
	assert.Regexp(t, `sound\s+skipped_quiet_hours`, res.stdout)
	assert.Contains(t, res.stdout, "at=02:00")
}

func TestCheck_InvalidAndMissingHandlers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`plugins:
  evil:
    enabled: false
    script: ../evil.sh
    events: {}
  ghost:
    script: ghost.py
    events:
      Stop: true
`), 0o644))

	res := execute(`{"hook_event_name":"Stop"}`, "check", "--config", cfgPath)
	require.NoError(t, res.err)
	assert.Regexp(t, `evil\s+skipped_invalid_path`, res.stdout)
	assert.Regexp(t, `ghost\s+skipped_missing_script`, res.stdout)
}

func TestCheck_InvalidAt(t *testing.T) {
	t.Parallel()

	res := execute("", "check", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--at", "25:99")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid --at")
}

func TestChannels_ListsInDeclarationOrder(t *testing.T) {
	t.Parallel()

	_, cfgPath := fixture(t, false)

	res := execute("", "channels", "--config", cfgPath)
	require.NoError(t, res.err)

	sound := strings.Index(res.stdout, "1. sound (enabled)")
	toast := strings.Index(res.stdout, "2. toast (enabled)")
	bot := strings.Index(res.stdout, "3. bot (enabled)")
	require.True(t, sound >= 0 && toast >= 0 && bot >= 0, res.stdout)
	assert.Less(t, sound, toast)
	assert.Less(t, toast, bot)
	assert.Contains(t, res.stdout, "events:  PreToolUse, Stop")
}

func TestChannels_YAML(t *testing.T) {
	t.Parallel()

	_, cfgPath := fixture(t, false)

	res := execute("", "channels", "--config", cfgPath, "--yaml")
	require.NoError(t, res.err)

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &doc))
	require.Len(t, doc.Content, 1)
	plugins := doc.Content[0].Content[1]

	var names []string
	for i := 0; i < len(plugins.Content); i += 2 {
		names = append(names, plugins.Content[i].Value)
	}
	assert.Equal(t, []string{"sound", "toast", "bot"}, names)
	assert.Contains(t, res.stdout, "script: sound.sh")
}

func TestChannels_NoneConfigured(t *testing.T) {
	t.Parallel()

	res := execute("", "channels", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No channels configured.")
}

func TestHistory_Empty(t *testing.T) {
	t.Parallel()

	res := execute("", "history", "--file", filepath.Join(t.TempDir(), "activity.log"))
	require.NoError(t, res.err)
	assert.Equal(t, "No activity recorded.\n", res.stdout)
}

func TestHistory_FailedFilterAndLimit(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	_, cfgPath := fixture(t, false)
	for _, payload := range []string{
		`{"hook_event_name":"Stop"}`,
		`{"hook_event_name":"Notification"}`,
		`{"hook_event_name":"Stop"}`,
	} {
		require.NoError(t, execute(payload, "dispatch", "--config", cfgPath).err)
	}

	failed := execute("", "history", "--config", cfgPath, "--failed")
	require.NoError(t, failed.err)
	assert.Equal(t, 1, strings.Count(failed.stdout, "\n"))
	assert.Contains(t, failed.stdout, "bot=ran(exit status 2)")

	last := execute("", "history", "--config", cfgPath, "-n", "2")
	require.NoError(t, last.err)
	assert.Equal(t, 2, strings.Count(last.stdout, "\n"))
}

func TestHistory_NegativeLimit(t *testing.T) {
	t.Parallel()

	res := execute("", "history", "--file", "x.log", "--limit=-1")
	require.Error(t, res.err)
}

func TestTest_RunsSingleChannel(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir, cfgPath := fixture(t, false)

	res := execute("", "test", "--config", cfgPath, "toast", "Stop")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Running toast")
	assert.Contains(t, res.stderr, "[OK] toast ran")

	got, err := os.ReadFile(filepath.Join(dir, "toast.out"))
	require.NoError(t, err)
	assert.Equal(t, "Stop", gjson.GetBytes(got, "hook_event_name").String())
	assert.Equal(t, testSessionID, gjson.GetBytes(got, "session_id").String())
}

func TestTest_FiltersSkip(t *testing.T) {
	t.Parallel()

	dir, cfgPath := fixture(t, false)

	res := execute("", "test", "--config", cfgPath, "toast", "Stop", "--filters")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "[SKIP] toast skipped_filtered")
	assert.NoFileExists(t, filepath.Join(dir, "toast.out"))
}

func TestTest_FailingHandler(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	_, cfgPath := fixture(t, false)

	res := execute("", "test", "--config", cfgPath, "bot")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "exit status 2")
	assert.Contains(t, res.stderr, "no token")
}

func TestTest_UnknownChannel(t *testing.T) {
	t.Parallel()

	_, cfgPath := fixture(t, false)

	res := execute("", "test", "--config", cfgPath, "nope")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unknown channel "nope"`)
}

func TestSamplePayload(t *testing.T) {
	t.Parallel()

	doc, err := samplePayload("PreToolUse", "Edit")
	require.NoError(t, err)
	assert.True(t, gjson.ValidBytes(doc))
	assert.Equal(t, "PreToolUse", gjson.GetBytes(doc, "hook_event_name").String())
	assert.Equal(t, "Edit", gjson.GetBytes(doc, "tool_name").String())
	assert.False(t, gjson.GetBytes(doc, "message").Exists())

	note, err := samplePayload("Notification", "")
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(note, "tool_name").Exists())
	assert.True(t, gjson.GetBytes(note, "message").Exists())
}

func TestDoctor(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir, cfgPath := fixture(t, false)

	res := execute("", "doctor", "--config", cfgPath)
	require.NoError(t, res.err, res.stdout)
	assert.Contains(t, res.stdout, "[OK] Config: "+cfgPath+" loaded")
	assert.Contains(t, res.stdout, "[OK] Channel bot: "+filepath.Join(dir, "bot.sh"))

	require.NoError(t, os.Remove(filepath.Join(dir, "bot.sh")))
	res = execute("", "doctor", "--config", cfgPath)
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "[FAIL] Channel bot")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	res := execute("", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "hookrelay version dev")
	assert.Contains(t, res.stdout, "Go version: go")
}

func TestRootCmd_Commands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	want := []string{"dispatch", "test", "check", "channels", "history", "doctor", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "debug", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	t.Parallel()

	res := execute("", "--version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "hookrelay version dev")
}
