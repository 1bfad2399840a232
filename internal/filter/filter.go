// Package filter decides whether a channel runs for an event. Everything here
// is a pure function of its arguments: no I/O and no clock reads, so the same
// inputs always produce the same decision.
package filter

import (
	"time"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
)

// Evaluate returns Ran when the channel should run for ev at now, or the
// reason it is skipped (SkippedFiltered or SkippedQuietHours).
//
// Checks run in order and stop at the first denial:
//  1. the channel is enabled
//  2. the event type is explicitly allowed (absent means denied)
//  3. the tool filter, when present and the event names a tool: a per-tool
//     override for this event type decides; otherwise the whitelist or
//     blacklist applies
//  4. quiet hours: inside the window a channel runs only when allow-listed
//     and not muted
func Evaluate(ev event.Event, ch config.Channel, global config.Global, now time.Time) outcome.Decision {
	if !ch.Enabled {
		return outcome.SkippedFiltered
	}

	if !ch.AllowsEvent(string(ev.Type)) {
		return outcome.SkippedFiltered
	}

	if !toolPasses(ev, ch.Tools) {
		return outcome.SkippedFiltered
	}

	if InQuietHours(global.QuietHours, now) && !QuietHoursAdmit(global.QuietHours, ch.Name) {
		return outcome.SkippedQuietHours
	}

	return outcome.Ran
}

// ShouldRun reports whether Evaluate returns Ran
func ShouldRun(ev event.Event, ch config.Channel, global config.Global, now time.Time) bool {
	return Evaluate(ev, ch, global, now) == outcome.Ran
}

// toolPasses applies the tool filter. Events without a tool name are not
// subject to it.
func toolPasses(ev event.Event, tf *config.ToolFilter) bool {
	if tf == nil || !ev.HasTool() {
		return true
	}

	if allowed, ok := tf.Override(ev.ToolName, string(ev.Type)); ok {
		return allowed
	}

	switch tf.Mode {
	case config.ToolWhitelist:
		return tf.Contains(ev.ToolName)
	case config.ToolBlacklist:
		return !tf.Contains(ev.ToolName)
	default:
		return true
	}
}

// InQuietHours reports whether now falls inside the enabled quiet-hours
// window [Start, End). A window whose start is later than its end wraps past
// midnight; equal start and end is an empty window.
func InQuietHours(qh *config.QuietHours, now time.Time) bool {
	if qh == nil || !qh.Enabled {
		return false
	}

	cur := config.ClockOf(now)
	switch {
	case qh.Start == qh.End:
		return false
	case qh.Start < qh.End:
		return cur >= qh.Start && cur < qh.End
	default:
		return cur >= qh.Start || cur < qh.End
	}
}

// QuietHoursAdmit reports whether the named channel may run during quiet
// hours. A muted channel never runs; otherwise it must be allow-listed.
func QuietHoursAdmit(qh *config.QuietHours, channel string) bool {
	if qh == nil {
		return true
	}
	if qh.Mutes(channel) {
		return false
	}
	return qh.Allows(channel)
}
