// Package config provides the typed configuration model for hookrelay: the
// ordered list of notification channels with their filters, quiet hours,
// activity logging, decoder and invoker settings.
//
// Configuration is loaded with koanf from (lowest to highest priority) built-in
// defaults, a YAML or JSON file, and HOOKRELAY_* environment variables.
package config

import (
	"slices"
	"time"
)

// ToolMode selects how a channel's tool list is applied
type ToolMode string

const (
	// ToolWhitelist runs the channel only for listed tools
	ToolWhitelist ToolMode = "whitelist"
	// ToolBlacklist runs the channel for every tool except listed ones
	ToolBlacklist ToolMode = "blacklist"
)

// ToolFilter restricts a channel by tool name. Overrides map a tool name to
// per-event flags and take precedence over the list.
type ToolFilter struct {
	Mode      ToolMode                   `validate:"oneof=whitelist blacklist"`
	List      []string
	Overrides map[string]map[string]bool
}

// Contains reports whether tool is in the filter's list
func (f *ToolFilter) Contains(tool string) bool {
	return slices.Contains(f.List, tool)
}

// Override returns the per-tool flag for eventType, if the tool has an
// override that mentions that event.
func (f *ToolFilter) Override(tool, eventType string) (allowed, ok bool) {
	events, found := f.Overrides[tool]
	if !found {
		return false, false
	}
	allowed, ok = events[eventType]
	return allowed, ok
}

// Channel is one configured notification handler
type Channel struct {
	// Name is the key the channel was declared under; unique
	Name string `validate:"required"`
	// Enabled is the channel's master switch (default: true)
	Enabled bool
	// Script locates the handler, relative to the invoker base directory
	Script string
	// Events maps event type to whether the channel handles it. Absent means no.
	Events map[string]bool
	// Tools is optional; nil means every tool passes
	Tools *ToolFilter `validate:"omitempty"`
	// Args are appended to the handler command line after tool and event
	Args []string
	// Timeout overrides the invoker default when positive
	Timeout time.Duration `validate:"min=0"`
}

// AllowsEvent reports whether the channel opted into eventType
func (c Channel) AllowsEvent(eventType string) bool {
	return c.Events[eventType]
}

// QuietHours is a daily window during which only allow-listed channels run.
// Start == End is an empty window.
type QuietHours struct {
	Enabled bool
	Start   Clock
	End     Clock
	Mute    []string
	Allow   []string
}

// Mutes reports whether the channel is on the mute list
func (q *QuietHours) Mutes(channel string) bool {
	return slices.Contains(q.Mute, channel)
}

// Allows reports whether the channel is on the allow list
func (q *QuietHours) Allows(channel string) bool {
	return slices.Contains(q.Allow, channel)
}

// Logging controls the activity log and diagnostic verbosity
type Logging struct {
	Enabled bool
	File    string
	Level   string `validate:"omitempty,oneof=debug info warn warning error"`
}

// Global holds the settings every channel is evaluated against
type Global struct {
	QuietHours *QuietHours
	Logging    Logging
}

// Decoder configures the event decoder
type Decoder struct {
	Encodings []string
}

// Invoker configures how handler processes are started
type Invoker struct {
	// BaseDir is where relative handler scripts are resolved and run
	BaseDir string
	// Timeout is the default per-handler wall-clock limit
	Timeout time.Duration `validate:"gt=0"`
	// Concurrency bounds parallel handlers; 1 runs them sequentially
	Concurrency int `validate:"min=1,max=64"`
	// AllowedAbsolute lists absolute handler paths (files or directories)
	// that may be referenced directly
	AllowedAbsolute []string
	// Runtimes maps a handler file extension (without the dot) to the
	// program that runs it
	Runtimes map[string]string `validate:"min=1"`
}

// Configuration is the complete, validated hookrelay configuration
type Configuration struct {
	// Channels are in the order they were declared in the document
	Channels []Channel `validate:"dive"`
	Global   Global
	Decoder  Decoder
	Invoker  Invoker

	// Source is the file the configuration was loaded from (empty for defaults)
	Source string
	// Legacy is true when channels came from the "notifications" key
	Legacy bool
}

// Channel returns the named channel
func (c *Configuration) Channel(name string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}
