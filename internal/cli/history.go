package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/ariel-frischer/hookrelay/internal/activity"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View recent dispatch history from the activity log",
		Long: `View recent dispatches recorded in the activity log: time, dispatch ID,
event, tool, and each channel's decision. Recording is enabled with
logging.enabled in the configuration.`,
		GroupID:      GroupInspect,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runHistory,
	}
	cmd.Flags().IntP("limit", "n", 20, "Show the last N entries (0 for all)")
	cmd.Flags().Bool("failed", false, "Only show dispatches with a failed channel")
	cmd.Flags().String("file", "", "Read this activity log instead of the configured one")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	failedOnly, _ := cmd.Flags().GetBool("failed")

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = loadRuntime(cmd).cfg.Global.Logging.File
	}

	readLimit := limit
	if failedOnly {
		readLimit = 0
	}
	entries, err := activity.Read(path, readLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	entries = filterHistory(entries, failedOnly, limit)

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded.")
		return nil
	}
	displayHistory(cmd.OutOrStdout(), entries)
	return nil
}

// filterHistory applies the failed filter and keeps the most recent limit
func filterHistory(entries []activity.Entry, failedOnly bool, limit int) []activity.Entry {
	var result []activity.Entry
	for _, e := range entries {
		if failedOnly && !e.Failed() {
			continue
		}
		result = append(result, e)
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

func displayHistory(out io.Writer, entries []activity.Entry) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, entry := range entries {
		tool := entry.Tool
		if tool == "" {
			tool = "-"
		}

		parts := make([]string, 0, len(entry.Outcomes))
		for _, o := range entry.Outcomes {
			label := o.Channel + "=" + o.Decision
			switch {
			case o.Error != "":
				parts = append(parts, red(label+"("+o.Error+")"))
			case o.Decision == "ran":
				parts = append(parts, green(label))
			default:
				parts = append(parts, yellow(label))
			}
		}

		fmt.Fprintf(out, "%s  %s  %-16s  %-10s  %s\n",
			cyan(entry.Timestamp.Local().Format("2006-01-02 15:04:05")),
			shortID(entry.ID),
			entry.Event,
			tool,
			strings.Join(parts, " "),
		)
	}
}

// shortID returns the first block of a dispatch ID
func shortID(id string) string {
	if id == "" {
		return fmt.Sprintf("%-8s", "-")
	}
	if len(id) > 8 {
		return id[:8]
	}
	return fmt.Sprintf("%-8s", id)
}
