package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/activity"
	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/dispatch"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/invoker"
	"github.com/ariel-frischer/hookrelay/internal/logging"
	"github.com/ariel-frischer/hookrelay/internal/progress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// now is the clock used for quiet-hours evaluation
var now = time.Now

// maxInputSize bounds how much of stdin is read as the event document
const maxInputSize = 8 << 20

// runtimeEnv is what every command needs after startup: the configuration
// snapshot and a logger on the command's stderr
type runtimeEnv struct {
	configPath string
	cfg        *config.Configuration
	logger     *zap.Logger
}

// resolveConfigPath picks the config file: --config, then HOOKRELAY_CONFIG,
// then the first file found in ~/.hookrelay. An empty result means defaults.
func resolveConfigPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv(config.EnvConfigPath); path != "" {
		return path
	}
	return config.Discover(config.DefaultDir())
}

// loadRuntime loads the configuration, falling back to the safe default on
// any error, and builds the logger it configures
func loadRuntime(cmd *cobra.Command) *runtimeEnv {
	debug, _ := cmd.Flags().GetBool("debug")
	stderr := cmd.ErrOrStderr()

	path := resolveConfigPath(cmd)
	bootstrap := logging.NewWithWriter(stderr, config.DefaultLogLevel, debug)
	cfg := config.LoadOrDefault(path, bootstrap)

	return &runtimeEnv{
		configPath: path,
		cfg:        cfg,
		logger:     logging.NewWithWriter(stderr, cfg.Global.Logging.Level, debug),
	}
}

// newInvoker builds the handler invoker from the configuration
func (rt *runtimeEnv) newInvoker() *invoker.Invoker {
	return invoker.New(rt.cfg.Invoker, invoker.WithLogger(rt.logger.Named("invoker")))
}

// newDecoder builds the event decoder, logging encodings it cannot use
func (rt *runtimeEnv) newDecoder() *event.Decoder {
	decoder, skipped := event.NewDecoder(rt.cfg.Decoder.Encodings)
	for _, name := range skipped {
		rt.logger.Warn("ignoring unknown encoding", zap.String("encoding", name))
	}
	return decoder
}

// newDispatcher wires the dispatcher with the configured pool size and, when
// activity logging is on, the activity log
func (rt *runtimeEnv) newDispatcher(runner dispatch.Runner) *dispatch.Dispatcher {
	opts := []dispatch.Option{
		dispatch.WithDecoder(rt.newDecoder()),
		dispatch.WithClock(now),
		dispatch.WithConcurrency(rt.cfg.Invoker.Concurrency),
		dispatch.WithLogger(rt.logger.Named("dispatch")),
	}
	if rt.cfg.Global.Logging.Enabled && rt.cfg.Global.Logging.File != "" {
		opts = append(opts, dispatch.WithRecorder(activity.NewWriter(rt.cfg.Global.Logging.File)))
	}
	return dispatch.New(runner, opts...)
}

// terminalCaps detects the terminal behind w. Anything that is not a file
// (a pipe buffer in tests, for example) gets plain ASCII output.
func terminalCaps(w io.Writer) progress.TerminalCapabilities {
	if f, ok := w.(*os.File); ok {
		return progress.DetectTerminalCapabilities(f)
	}
	return progress.TerminalCapabilities{}
}

// readEvent reads the event document from in. A terminal on stdin means no
// document was piped, which yields empty input rather than a blocking read.
func readEvent(in io.Reader) ([]byte, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(in, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("reading event from stdin: %w", err)
	}
	return raw, nil
}

// fallbackArgs splits the optional [tool] [event] positional arguments
func fallbackArgs(args []string) (tool, eventType string) {
	if len(args) > 0 {
		tool = args[0]
	}
	if len(args) > 1 {
		eventType = args[1]
	}
	return tool, eventType
}

// commandContext returns the command's context, or Background when the
// command was invoked without one
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
