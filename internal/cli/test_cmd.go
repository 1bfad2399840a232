package cli

import (
	"fmt"
	"os"

	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/filter"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
	"github.com/ariel-frischer/hookrelay/internal/progress"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
)

// testSessionID marks sample events so handlers can recognize them
const testSessionID = "hookrelay-test"

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <channel> [event] [tool]",
		Short: "Run one channel's handler with a sample event",
		Long: `Build a sample hook event and run a single channel's handler with it, showing
progress on stderr. The channel's event and tool rules and quiet hours are
ignored unless --filters is given. Exits non-zero when the handler does not
run cleanly.`,
		Example: `  hookrelay test sound
  hookrelay test toast PreToolUse Bash --filters`,
		GroupID: GroupHook,
		Args:    cobra.RangeArgs(1, 3),
		RunE:    runTest,
	}
	cmd.Flags().Bool("filters", false, "Apply the channel's filters and quiet hours before running")
	return cmd
}

func runTest(cmd *cobra.Command, args []string) error {
	eventType := string(event.Notification)
	if len(args) > 1 {
		eventType = args[1]
	}
	tool := ""
	if len(args) > 2 {
		tool = args[2]
	}

	rt := loadRuntime(cmd)
	ch, ok := rt.cfg.Channel(args[0])
	if !ok {
		return fmt.Errorf("unknown channel %q", args[0])
	}

	payload, err := samplePayload(eventType, tool)
	if err != nil {
		return fmt.Errorf("building sample event: %w", err)
	}
	ev := rt.newDecoder().Decode(payload)

	stderr := cmd.ErrOrStderr()
	display := progress.NewDisplay(stderr, terminalCaps(stderr))

	if useFilters, _ := cmd.Flags().GetBool("filters"); useFilters {
		if decision := filter.Evaluate(ev, ch, rt.cfg.Global, now()); decision.Skipped() {
			display.Finish(outcome.Outcome{Channel: ch.Name, Decision: decision})
			return nil
		}
	}

	display.Start(ch.Name)
	result := rt.newInvoker().Invoke(commandContext(cmd), ch, ev, ch.Timeout)
	display.Finish(result)

	if result.Failed() || result.Decision != outcome.Ran {
		return fmt.Errorf("channel %s: %s", ch.Name, describeOutcome(result))
	}
	return nil
}

// samplePayload builds a hook event document for the given type and tool
func samplePayload(eventType, tool string) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	if doc, err = sjson.SetBytes(doc, "hook_event_name", eventType); err != nil {
		return nil, err
	}
	if tool != "" {
		if doc, err = sjson.SetBytes(doc, "tool_name", tool); err != nil {
			return nil, err
		}
	}
	if doc, err = sjson.SetBytes(doc, "session_id", testSessionID); err != nil {
		return nil, err
	}
	if cwd, cwdErr := os.Getwd(); cwdErr == nil {
		if doc, err = sjson.SetBytes(doc, "cwd", cwd); err != nil {
			return nil, err
		}
	}
	if eventType == string(event.Notification) {
		if doc, err = sjson.SetBytes(doc, "message", "hookrelay test notification"); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func describeOutcome(o outcome.Outcome) string {
	if o.Error != "" {
		return o.Error
	}
	return o.Decision.String()
}
