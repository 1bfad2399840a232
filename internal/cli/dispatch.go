package cli

import (
	"fmt"

	"github.com/ariel-frischer/hookrelay/internal/dispatch"
	"github.com/ariel-frischer/hookrelay/internal/progress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [tool] [event]",
		Short: "Route the hook event on stdin to all matching channels",
		Long: `Read a hook event document from stdin and run every channel whose rules
match it. The optional positional arguments supply the tool name and event
type when stdin is empty or cannot be parsed.

Channel failures never change the exit status: only a failure to read stdin
itself exits non-zero, so the calling tool is never blocked by a broken
notification channel.`,
		Example: `  # As a Claude Code hook command
  hookrelay dispatch

  # Positional fallbacks
  hookrelay dispatch Bash PreToolUse < /dev/null`,
		GroupID: GroupHook,
		Args:    cobra.MaximumNArgs(2),
		RunE:    runDispatch,
	}
}

func runDispatch(cmd *cobra.Command, args []string) error {
	raw, err := readEvent(cmd.InOrStdin())
	if err != nil {
		return err
	}

	rt := loadRuntime(cmd)
	defer func() { _ = rt.logger.Sync() }()

	dispatcher := rt.newDispatcher(rt.newInvoker())
	tool, eventType := fallbackArgs(args)
	ev := dispatcher.Decode(raw).WithFallback(tool, eventType)

	report := dispatcher.DispatchEvent(commandContext(cmd), ev, rt.cfg.Channels, rt.cfg.Global)
	rt.logger.Debug("dispatch complete",
		zap.String("dispatch", report.ID),
		zap.Int("channels", len(report.Outcomes)),
		zap.Int("ran", report.Ran()),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", report.Duration),
	)

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		printReport(cmd, report)
	}
	return nil
}

// printReport writes one result line per channel to stderr
func printReport(cmd *cobra.Command, report dispatch.Report) {
	out := cmd.ErrOrStderr()
	display := progress.NewDisplay(out, terminalCaps(out))

	fmt.Fprintf(out, "%s %s (%s)\n", report.Event.Type, report.Event.ToolName, report.ID)
	for _, o := range report.Outcomes {
		fmt.Fprintln(out, "  "+display.Line(o))
	}
}
