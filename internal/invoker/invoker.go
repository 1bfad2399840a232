// Package invoker runs channel handlers as isolated child processes.
//
// Every invocation gets its own process (and process group), its own copy of
// the event on stdin, and its own output buffers; nothing is shared between
// concurrent invocations. Handler failures (missing files, crashes, non-zero
// exits, timeouts) are reported in the returned Outcome and never as a Go
// error or panic, so one broken channel cannot disturb the others.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
	"go.uber.org/zap"
)

// ErrTimeout is reported when a handler exceeds its wall-clock limit
var ErrTimeout = errors.New("timeout")

const (
	// defaultWaitDelay bounds how long Wait keeps draining pipes after the
	// handler exits or is killed; grandchildren holding stderr open cannot
	// stall the dispatcher past it
	defaultWaitDelay = 500 * time.Millisecond
	// maxStderr caps captured diagnostic output per handler
	maxStderr = 4 << 10
)

// Invoker starts handler processes. It is immutable after New and safe for
// concurrent use.
type Invoker struct {
	baseDir   string
	allowed   []string
	runtimes  map[string]string
	timeout   time.Duration
	waitDelay time.Duration
	env       []string
	logger    *zap.Logger
}

// Option configures an Invoker
type Option func(*Invoker)

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.Logger) Option {
	return func(iv *Invoker) {
		iv.logger = l
	}
}

// WithWaitDelay overrides how long pipes are drained after exit or kill
func WithWaitDelay(d time.Duration) Option {
	return func(iv *Invoker) {
		iv.waitDelay = d
	}
}

// WithEnv sets the base environment for handler processes (default os.Environ)
func WithEnv(env []string) Option {
	return func(iv *Invoker) {
		iv.env = env
	}
}

// New creates an Invoker from the invoker configuration
func New(cfg config.Invoker, opts ...Option) *Invoker {
	iv := &Invoker{
		baseDir:   cfg.BaseDir,
		runtimes:  maps.Clone(cfg.Runtimes),
		timeout:   cfg.Timeout,
		waitDelay: defaultWaitDelay,
		logger:    zap.NewNop(),
	}
	if iv.baseDir == "" {
		iv.baseDir = "."
	}
	if abs, err := filepath.Abs(iv.baseDir); err == nil {
		iv.baseDir = abs
	}
	if iv.timeout <= 0 {
		iv.timeout = config.DefaultTimeout
	}
	if len(iv.runtimes) == 0 {
		iv.runtimes = config.DefaultRuntimes()
	}
	for _, p := range cfg.AllowedAbsolute {
		if p == "" {
			continue
		}
		iv.allowed = append(iv.allowed, filepath.Clean(p))
	}

	for _, opt := range opts {
		opt(iv)
	}
	if iv.env == nil {
		iv.env = os.Environ()
	}
	return iv
}

// BaseDir returns the directory relative handler paths are resolved against
func (iv *Invoker) BaseDir() string {
	return iv.baseDir
}

// DefaultTimeout returns the limit used when a channel sets none
func (iv *Invoker) DefaultTimeout() time.Duration {
	return iv.timeout
}

// Invoke runs the channel's handler for ev and waits for it to exit or for
// timeout (the invoker default when timeout <= 0) to expire. Cancelling ctx
// also terminates the handler.
//
// The command line is: <runtime> <handler> <toolName> <eventType> [args...].
// An event without a tool name passes its event type in the tool position.
// The raw event document is written to the handler's stdin.
func (iv *Invoker) Invoke(ctx context.Context, ch config.Channel, ev event.Event, timeout time.Duration) outcome.Outcome {
	result := outcome.Outcome{Channel: ch.Name, Decision: outcome.Ran}

	h, err := iv.Resolve(ch.Script)
	switch {
	case errors.Is(err, ErrInvalidPath):
		result.Decision = outcome.SkippedInvalidPath
		result.Error = err.Error()
		return result
	case errors.Is(err, ErrMissingScript):
		result.Decision = outcome.SkippedMissingScript
		return result
	case err != nil:
		result.Decision = outcome.SkippedInvalidPath
		result.Error = err.Error()
		return result
	}

	if timeout <= 0 {
		timeout = iv.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := iv.buildCommand(h, ch, ev)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, max: maxStderr}
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderr}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.Duration = time.Since(start)
		result.Error = fmt.Sprintf("starting handler: %v", err)
		return result
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done // Wait for goroutine to exit
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Error = ErrTimeout.Error()
		} else {
			result.Error = ctx.Err().Error()
		}
	case err = <-done:
		if err != nil {
			result.Error = exitDescription(err)
		}
	}
	result.Duration = time.Since(start)
	result.Stderr = strings.TrimSpace(stderr.String())

	if out := strings.TrimSpace(stdout.String()); out != "" {
		iv.logger.Debug("handler output", zap.String("channel", ch.Name), zap.String("stdout", out))
	}
	return result
}

// buildCommand constructs the handler process. Each call creates a fresh
// exec.Cmd whose stdin reads from the event's own payload.
func (iv *Invoker) buildCommand(h Handler, ch config.Channel, ev event.Event) *exec.Cmd {
	toolArg := ev.ToolName
	if toolArg == "" {
		toolArg = string(ev.Type)
	}

	args := make([]string, 0, 3+len(ch.Args))
	args = append(args, h.Path, toolArg, string(ev.Type))
	args = append(args, ch.Args...)

	cmd := exec.Command(h.Runtime, args...)
	cmd.Dir = iv.baseDir
	cmd.Stdin = ev.PayloadReader()
	cmd.Env = iv.buildEnv(ch, ev)
	cmd.WaitDelay = iv.waitDelay
	setProcessGroup(cmd)
	return cmd
}

// buildEnv copies the base environment and adds the routing fields
func (iv *Invoker) buildEnv(ch config.Channel, ev event.Event) []string {
	env := make([]string, 0, len(iv.env)+4)
	env = append(env, iv.env...)
	env = append(env,
		"HOOKRELAY_CHANNEL="+ch.Name,
		"HOOKRELAY_EVENT="+string(ev.Type),
		"HOOKRELAY_TOOL="+ev.ToolName,
	)
	if ev.SessionID != "" {
		env = append(env, "HOOKRELAY_SESSION="+ev.SessionID)
	}
	return env
}

// exitDescription turns a Wait error into the outcome's error text
func exitDescription(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return fmt.Sprintf("exit status %d", code)
		}
		return exitErr.String()
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The handler exited cleanly but left its output pipes open.
		return ""
	}
	return err.Error()
}

// limitedWriter keeps the first max bytes and discards the rest while still
// reporting full writes, so a chatty handler never blocks on its pipe
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
