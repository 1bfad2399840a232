// hookrelay - Event notification dispatcher for Claude Code hooks
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/hookrelay

// Package cli provides the Cobra-based commands for hookrelay: the hook entry
// point (dispatch), inspection commands (check, channels, history, doctor),
// a single-channel smoke test (test), and version information.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariel-frischer/hookrelay/internal/build"
	"github.com/spf13/cobra"
)

// Command group IDs for organizing help output
const (
	GroupHook    = "hook"
	GroupInspect = "inspect"
)

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "hookrelay",
		Version: build.Summary(),
		Short:   "Route Claude Code hook events to notification channels",
		Long: `hookrelay routes Claude Code hook events to notification channels

Each hook event arrives as a JSON document on stdin. hookrelay decodes it once,
checks every configured channel's event, tool and quiet-hours rules, and runs
the matching handler scripts as isolated child processes with a timeout.

Source: https://github.com/ariel-frischer/hookrelay`,
		Example: `  # Hook entry point (configure this as the hook command)
  hookrelay dispatch

  # With positional fallbacks when stdin is empty or unreadable
  hookrelay dispatch Bash PreToolUse

  # See which channels would run, without running them
  echo '{"hook_event_name":"Stop"}' | hookrelay check

  # Fire one channel with a sample event
  hookrelay test sound Stop`,
		SilenceUsage: true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: GroupHook, Title: "Hook Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: GroupInspect, Title: "Inspection:"})
	rootCmd.SetHelpCommandGroupID(GroupInspect)
	rootCmd.SetCompletionCommandGroupID(GroupInspect)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: $HOOKRELAY_CONFIG or ~/.hookrelay/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print per-channel outcomes to stderr")

	rootCmd.AddCommand(
		newDispatchCmd(),
		newTestCmd(),
		newCheckCmd(),
		newChannelsCmd(),
		newHistoryCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// dispatch, which terminates any handler still running.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
