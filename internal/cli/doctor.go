package cli

import (
	"fmt"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/health"
	"github.com/ariel-frischer/hookrelay/internal/invoker"
	"github.com/ariel-frischer/hookrelay/internal/progress"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, runtimes and handler scripts",
		Long: `Check that the configuration loads, that each runtime needed by an enabled
channel is installed, that every enabled channel's handler resolves to a file,
and that the activity log is writable. Exits non-zero when any check fails.`,
		GroupID:      GroupInspect,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd)
			cfg, err := config.Load(path)
			if err != nil {
				cfg = config.Default()
			}

			report := health.RunHealthChecks(health.Input{
				ConfigPath: path,
				Config:     cfg,
				LoadErr:    err,
				Invoker:    invoker.New(cfg.Invoker),
			})
			out := cmd.OutOrStdout()
			symbols := progress.SelectSymbols(terminalCaps(out))
			fmt.Fprint(out, health.FormatReport(report, symbols))
			if !report.Passed {
				return fmt.Errorf("health checks failed")
			}
			return nil
		},
	}
}
