// Package health runs the doctor checks: the configuration loads, every
// runtime a channel needs is installed, every enabled handler resolves, and
// the activity log is writable.
package health

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/invoker"
	"github.com/ariel-frischer/hookrelay/internal/progress"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
}

// HealthReport contains all health check results
type HealthReport struct {
	Checks []CheckResult
	Passed bool
}

func (r *HealthReport) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// Input is what the checks inspect
type Input struct {
	// ConfigPath is the file that was loaded ("" when none was found)
	ConfigPath string
	// Config is the loaded configuration, or the default one after LoadErr
	Config *config.Configuration
	// LoadErr is the error from loading ConfigPath, if any
	LoadErr error
	// Invoker resolves handler paths
	Invoker *invoker.Invoker
	// LookPath finds runtimes (default exec.LookPath)
	LookPath func(string) (string, error)
}

// RunHealthChecks runs all health checks and returns a report
func RunHealthChecks(in Input) *HealthReport {
	if in.LookPath == nil {
		in.LookPath = exec.LookPath
	}
	report := &HealthReport{
		Checks: make([]CheckResult, 0),
		Passed: true,
	}

	report.add(CheckConfig(in.ConfigPath, in.LoadErr))
	for _, program := range requiredRuntimes(in.Config) {
		report.add(CheckRuntime(program, in.LookPath))
	}
	for _, ch := range in.Config.Channels {
		if ch.Enabled {
			report.add(CheckHandler(in.Invoker, ch))
		}
	}
	if in.Config.Global.Logging.Enabled {
		report.add(CheckActivityLog(in.Config.Global.Logging.File))
	}
	return report
}

// CheckConfig reports whether the configuration file loaded
func CheckConfig(path string, loadErr error) CheckResult {
	if loadErr != nil {
		return CheckResult{
			Name:    "Config",
			Passed:  false,
			Message: fmt.Sprintf("%v (defaults are used instead)", loadErr),
		}
	}
	if path == "" {
		return CheckResult{
			Name:    "Config",
			Passed:  true,
			Message: "no config file found, using defaults",
		}
	}
	return CheckResult{
		Name:    "Config",
		Passed:  true,
		Message: path + " loaded",
	}
}

// CheckRuntime checks if a handler runtime is available
func CheckRuntime(program string, lookPath func(string) (string, error)) CheckResult {
	name := "Runtime " + program
	path, err := lookPath(program)
	if err != nil {
		return CheckResult{
			Name:    name,
			Passed:  false,
			Message: program + " not found in PATH",
		}
	}
	return CheckResult{
		Name:    name,
		Passed:  true,
		Message: path,
	}
}

// CheckHandler checks that a channel's handler resolves to an existing file
func CheckHandler(iv *invoker.Invoker, ch config.Channel) CheckResult {
	name := "Channel " + ch.Name
	h, err := iv.Resolve(ch.Script)
	if err != nil {
		return CheckResult{Name: name, Passed: false, Message: err.Error()}
	}
	return CheckResult{Name: name, Passed: true, Message: h.Path}
}

// CheckActivityLog checks that the activity log can be appended to
func CheckActivityLog(path string) CheckResult {
	name := "Activity log"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return CheckResult{Name: name, Passed: false, Message: err.Error()}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return CheckResult{Name: name, Passed: false, Message: err.Error()}
	}
	_ = f.Close()
	return CheckResult{Name: name, Passed: true, Message: path}
}

// requiredRuntimes lists, without duplicates, the programs needed to run the
// enabled channels' handlers
func requiredRuntimes(cfg *config.Configuration) []string {
	var programs []string
	for _, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(ch.Script), "."))
		program, ok := cfg.Invoker.Runtimes[ext]
		if !ok || slices.Contains(programs, program) {
			continue
		}
		programs = append(programs, program)
	}
	return programs
}

// FormatReport formats the health report for console output using the
// given pass/fail symbols
func FormatReport(report *HealthReport, symbols progress.Symbols) string {
	var output strings.Builder

	for _, check := range report.Checks {
		mark := symbols.Checkmark
		if !check.Passed {
			mark = symbols.Failure
		}
		fmt.Fprintf(&output, "%s %s: %s\n", mark, check.Name, check.Message)
	}

	return output.String()
}
