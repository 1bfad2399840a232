// Package outcome defines the per-channel result of a dispatch. It sits below
// the filter, invoker and dispatch packages so all three can produce it.
package outcome

import "time"

// Decision records what happened to one channel during one dispatch
type Decision string

const (
	// Ran means the handler process was started (it may still have failed)
	Ran Decision = "ran"
	// SkippedFiltered means the channel's enabled/event/tool rules excluded it
	SkippedFiltered Decision = "skipped_filtered"
	// SkippedQuietHours means quiet hours silenced the channel
	SkippedQuietHours Decision = "skipped_quiet_hours"
	// SkippedMissingScript means the handler file does not exist
	SkippedMissingScript Decision = "skipped_missing_script"
	// SkippedInvalidPath means the handler reference was rejected
	SkippedInvalidPath Decision = "skipped_invalid_path"
)

// Skipped reports whether the handler was not started
func (d Decision) Skipped() bool {
	return d != Ran
}

func (d Decision) String() string {
	return string(d)
}

// Outcome is the result for one channel. Exactly one is produced per channel
// per dispatch.
type Outcome struct {
	Channel  string
	Decision Decision
	Error    string
	Duration time.Duration
	// Stderr is the handler's diagnostic output, truncated
	Stderr string
}

// Failed reports whether the outcome carries an error
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// DurationMs returns the handler run time in milliseconds
func (o Outcome) DurationMs() int64 {
	return o.Duration.Milliseconds()
}
