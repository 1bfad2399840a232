// Package invoker_test tests handler path validation and process execution:
// traversal rejection, allow-listed absolute paths, runtime selection by
// extension, argument and stdin passing, exit codes, and timeout kills.
// Related: internal/invoker/invoker.go, internal/invoker/resolve.go
// Tags: invoker, process, isolation, timeout
package invoker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
	"github.com/ariel-frischer/hookrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoker(dir string, allowed ...string) *Invoker {
	return New(config.Invoker{
		BaseDir:         dir,
		Timeout:         5 * time.Second,
		AllowedAbsolute: allowed,
		Runtimes:        map[string]string{"sh": "sh", "py": "python3"},
	}, WithWaitDelay(100*time.Millisecond))
}

func decode(t *testing.T, raw string) event.Event {
	t.Helper()
	d, _ := event.NewDecoder(nil)
	return d.Decode([]byte(raw))
}

func TestCheckPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	hooks := filepath.Join(dir, "shared")
	iv := newInvoker(dir, hooks, "/opt/single/notify.py")

	tests := map[string]struct {
		script  string
		wantErr error
	}{
		"relative handler":             {script: "sound.sh"},
		"nested relative handler":      {script: "handlers/sound.py"},
		"uppercase extension":          {script: "SOUND.SH"},
		"leading parent segment":       {script: "../evil.sh", wantErr: ErrInvalidPath},
		"inner parent segment":         {script: "a/../../b.sh", wantErr: ErrInvalidPath},
		"backslash parent segment":     {script: `..\evil.sh`, wantErr: ErrInvalidPath},
		"parent segment that resolves": {script: "a/../b.sh", wantErr: ErrInvalidPath},
		"dots before a separator":      {script: "a../b.sh", wantErr: ErrInvalidPath},
		"dots before a backslash":      {script: `a..\b.sh`, wantErr: ErrInvalidPath},
		"absolute not allow-listed":    {script: "/etc/evil.sh", wantErr: ErrInvalidPath},
		"absolute inside allowed dir":  {script: filepath.Join(hooks, "x.sh")},
		"absolute sibling of allowed":  {script: hooks + "evil/x.sh", wantErr: ErrInvalidPath},
		"absolute exact allowed file":  {script: "/opt/single/notify.py"},
		"unknown extension":            {script: "sound.rb", wantErr: ErrInvalidPath},
		"no extension":                 {script: "sound", wantErr: ErrInvalidPath},
		"empty reference":              {script: "", wantErr: ErrMissingScript},
		"dots inside a name are fine":  {script: "my..handler.sh"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := iv.CheckPath(tt.script)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteHandler(t, dir, "present.sh", "exit 0\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.sh"), 0o755))
	iv := newInvoker(dir)

	h, err := iv.Resolve("present.sh")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(iv.BaseDir(), "present.sh"), h.Path)
	assert.Equal(t, "sh", h.Runtime)

	_, err = iv.Resolve("absent.sh")
	assert.ErrorIs(t, err, ErrMissingScript)

	_, err = iv.Resolve("folder.sh")
	assert.ErrorIs(t, err, ErrMissingScript)

	_, err = iv.Resolve("../present.sh")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	iv := New(config.Invoker{})
	assert.Equal(t, config.DefaultTimeout, iv.DefaultTimeout())
	assert.True(t, filepath.IsAbs(iv.BaseDir()))
	assert.Equal(t, config.DefaultRuntimes(), iv.runtimes)
}

func TestInvoke_PassesArgumentsAndStdin(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteHandler(t, dir, "record.sh", `printf '%s|' "$@" > args.txt
cat > stdin.txt
printf '%s' "$HOOKRELAY_CHANNEL/$HOOKRELAY_EVENT" > env.txt
`)
	iv := newInvoker(dir)

	raw := `{"hook_event_name":"PreToolUse","tool_name":"Bash","session_id":"s-1"}`
	ev := decode(t, raw)
	ch := config.Channel{Name: "recorder", Enabled: true, Script: script, Args: []string{"--loud", "x y"}}

	out := iv.Invoke(context.Background(), ch, ev, 0)
	require.Equal(t, outcome.Ran, out.Decision)
	assert.Empty(t, out.Error)
	assert.Equal(t, "recorder", out.Channel)
	assert.Positive(t, out.Duration)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Bash|PreToolUse|--loud|x y|", string(args))

	stdin, err := os.ReadFile(filepath.Join(dir, "stdin.txt"))
	require.NoError(t, err)
	assert.Equal(t, raw, string(stdin))

	env, err := os.ReadFile(filepath.Join(dir, "env.txt"))
	require.NoError(t, err)
	assert.Equal(t, "recorder/PreToolUse", string(env))
}

func TestInvoke_EventWithoutToolPassesEventType(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteHandler(t, dir, "record.sh", `printf '%s %s' "$1" "$2" > args.txt`+"\n")
	iv := newInvoker(dir)

	out := iv.Invoke(context.Background(), config.Channel{Name: "c", Script: script}, decode(t, `{"hook_event_name":"Stop"}`), 0)
	require.Equal(t, outcome.Ran, out.Decision)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Stop Stop", string(args))
}

func TestInvoke_NonZeroExit(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteHandler(t, dir, "fail.sh", "echo boom >&2\nexit 3\n")
	iv := newInvoker(dir)

	out := iv.Invoke(context.Background(), config.Channel{Name: "fail", Script: script}, decode(t, `{"hook_event_name":"Stop"}`), 0)
	assert.Equal(t, outcome.Ran, out.Decision)
	assert.Equal(t, "exit status 3", out.Error)
	assert.Equal(t, "boom", out.Stderr)
	assert.True(t, out.Failed())
}

func TestInvoke_TimeoutKillsHandler(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteHandler(t, dir, "hang.sh", "sleep 30\n")
	iv := newInvoker(dir)

	start := time.Now()
	out := iv.Invoke(context.Background(), config.Channel{Name: "hang", Script: script}, decode(t, `{"hook_event_name":"Stop"}`), 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, outcome.Ran, out.Decision)
	assert.Equal(t, ErrTimeout.Error(), out.Error)
	assert.Less(t, elapsed, 5*time.Second)
	assert.GreaterOrEqual(t, out.Duration, 200*time.Millisecond)
}

func TestInvoke_ContextCancel(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteHandler(t, dir, "hang.sh", "sleep 30\n")
	iv := newInvoker(dir)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	out := iv.Invoke(ctx, config.Channel{Name: "hang", Script: script}, decode(t, `{"hook_event_name":"Stop"}`), 10*time.Second)
	assert.Equal(t, outcome.Ran, out.Decision)
	assert.Equal(t, context.Canceled.Error(), out.Error)
}

func TestInvoke_SkipsWithoutStarting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	iv := newInvoker(dir)
	ev := decode(t, `{"hook_event_name":"Stop"}`)

	tests := map[string]struct {
		script string
		want   outcome.Decision
	}{
		"missing file":      {script: "absent.sh", want: outcome.SkippedMissingScript},
		"no script":         {script: "", want: outcome.SkippedMissingScript},
		"traversal":         {script: "../absent.sh", want: outcome.SkippedInvalidPath},
		"unknown extension": {script: "absent.exe", want: outcome.SkippedInvalidPath},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out := iv.Invoke(context.Background(), config.Channel{Name: "c", Script: tt.script}, ev, 0)
			assert.Equal(t, tt.want, out.Decision)
			assert.Zero(t, out.Duration)
		})
	}
}

func TestInvoke_ExistingHandlerBehindParentReferenceIsRejected(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	testutil.WriteHandler(t, dir, "a../b.sh", testutil.RecordStdin)
	iv := newInvoker(dir)
	ev := decode(t, `{"hook_event_name":"Stop"}`)

	out := iv.Invoke(context.Background(), config.Channel{Name: "b", Enabled: true, Script: "a../b.sh"}, ev, 0)
	assert.Equal(t, outcome.SkippedInvalidPath, out.Decision)
	assert.ErrorIs(t, iv.CheckPath("a../b.sh"), ErrInvalidPath)
	assert.Empty(t, testutil.ReadOutput(t, dir, "b.out"))
}

func TestInvoke_ConcurrentInvocationsAreIsolated(t *testing.T) {
	t.Parallel()
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteHandler(t, dir, "echo.sh", `cat > "out-$HOOKRELAY_CHANNEL.txt"`+"\n")
	iv := newInvoker(dir)

	names := []string{"a", "b", "c", "d"}
	results := make(chan outcome.Outcome, len(names))
	for _, name := range names {
		go func() {
			ev := decode(t, `{"hook_event_name":"Stop","session_id":"`+name+`"}`)
			results <- iv.Invoke(context.Background(), config.Channel{Name: name, Script: script}, ev, 0)
		}()
	}
	for range names {
		out := <-results
		assert.Equal(t, outcome.Ran, out.Decision)
		assert.Empty(t, out.Error)
	}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, "out-"+name+".txt"))
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), `"session_id":"`+name+`"`), "channel %s got %s", name, data)
	}
}

func TestLimitedWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, max: 5}

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = w.Write([]byte("ijk"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "abcde", buf.String())
}
