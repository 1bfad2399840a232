package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/filter"
	"github.com/ariel-frischer/hookrelay/internal/invoker"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// preview is the dry-run result for one channel
type preview struct {
	Channel  string
	Decision outcome.Decision
	Handler  invoker.Handler
	Reason   string
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [tool] [event]",
		Short: "Show which channels an event would run, without running them",
		Long: `Decode an event exactly like dispatch does and report, for every channel in
configuration order, whether it would run and which handler it resolves to.
No handler process is started.`,
		Example: `  echo '{"hook_event_name":"PreToolUse","tool_name":"Bash"}' | hookrelay check
  hookrelay check Edit PostToolUse --at 23:30`,
		GroupID: GroupInspect,
		Args:    cobra.MaximumNArgs(2),
		RunE:    runCheck,
	}
	cmd.Flags().String("at", "", "Evaluate quiet hours at this time of day (HH:MM) instead of now")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	when := now()
	if at, _ := cmd.Flags().GetString("at"); at != "" {
		clock, err := config.ParseClock(at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		when = time.Date(when.Year(), when.Month(), when.Day(), int(clock)/60, int(clock)%60, 0, 0, when.Location())
	}

	raw, err := readEvent(cmd.InOrStdin())
	if err != nil {
		return err
	}

	rt := loadRuntime(cmd)
	tool, eventType := fallbackArgs(args)
	ev := rt.newDecoder().Decode(raw).WithFallback(tool, eventType)
	iv := rt.newInvoker()

	previews := make([]preview, 0, len(rt.cfg.Channels))
	for _, ch := range rt.cfg.Channels {
		previews = append(previews, previewChannel(iv, ev, ch, rt.cfg.Global, when))
	}

	displayPreview(cmd.OutOrStdout(), rt, ev, when, previews)
	return nil
}

// previewChannel mirrors the dispatcher's decision order: the static path
// check first, then the filter, then the on-disk lookup
func previewChannel(iv *invoker.Invoker, ev event.Event, ch config.Channel, global config.Global, now time.Time) preview {
	p := preview{Channel: ch.Name}

	if err := iv.CheckPath(ch.Script); errors.Is(err, invoker.ErrInvalidPath) {
		p.Decision = outcome.SkippedInvalidPath
		p.Reason = err.Error()
		return p
	}

	p.Decision = filter.Evaluate(ev, ch, global, now)
	if p.Decision.Skipped() {
		return p
	}

	h, err := iv.Resolve(ch.Script)
	if err != nil {
		p.Decision = outcome.SkippedMissingScript
		p.Reason = err.Error()
		return p
	}
	p.Handler = h
	return p
}

func displayPreview(out io.Writer, rt *runtimeEnv, ev event.Event, now time.Time, previews []preview) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	source := rt.configPath
	if source == "" {
		source = "(defaults)"
	}
	fmt.Fprintf(out, "Config: %s\n", source)

	tool := ev.ToolName
	if tool == "" {
		tool = "-"
	}
	fmt.Fprintf(out, "Event:  %s  tool=%s  at=%s\n", cyan(string(ev.Type)), tool, config.ClockOf(now))
	if ev.Recovered {
		fmt.Fprintln(out, yellow("        (recovered from malformed input)"))
	}

	if len(previews) == 0 {
		fmt.Fprintln(out, "No channels configured.")
		return
	}

	width := 0
	for _, p := range previews {
		width = max(width, len(p.Channel))
	}

	for _, p := range previews {
		name := fmt.Sprintf("%-*s", width, p.Channel)
		decision := fmt.Sprintf("%-22s", p.Decision)
		switch p.Decision {
		case outcome.Ran:
			fmt.Fprintf(out, "  %s  %s  %s %s\n", name, green(decision), p.Handler.Runtime, p.Handler.Path)
		case outcome.SkippedInvalidPath, outcome.SkippedMissingScript:
			fmt.Fprintf(out, "  %s  %s  %s\n", name, red(decision), p.Reason)
		default:
			fmt.Fprintf(out, "  %s  %s\n", name, yellow(decision))
		}
	}
}
