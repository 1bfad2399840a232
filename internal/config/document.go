package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// exampleChannelPrefix marks sample entries that ship in config files but
// are never loaded as channels
const exampleChannelPrefix = "_"

// document mirrors the on-disk layout. It is unmarshalled by koanf and then
// converted into the typed Configuration by build.
type document struct {
	Plugins       map[string]channelDoc `koanf:"plugins"`
	Notifications map[string]channelDoc `koanf:"notifications"`
	QuietHours    quietHoursDoc         `koanf:"quiet_hours"`
	Logging       loggingDoc            `koanf:"logging"`
	Decoder       decoderDoc            `koanf:"decoder"`
	Invoker       invokerDoc            `koanf:"invoker"`
}

type channelDoc struct {
	Enabled *bool           `koanf:"enabled"`
	Script  string          `koanf:"script"`
	Events  map[string]bool `koanf:"events"`
	Tools   *toolsDoc       `koanf:"tools"`
	Args    []string        `koanf:"args"`
	Timeout time.Duration   `koanf:"timeout"`

	// Params is the legacy name for Args
	Params []string `koanf:"params"`
}

// toolsDoc accepts both the mode/list form and the legacy
// whitelist/blacklist/custom form.
type toolsDoc struct {
	// Enabled false switches the whole filter off (legacy form)
	Enabled *bool `koanf:"enabled"`

	Mode      string                     `koanf:"mode"`
	List      []string                   `koanf:"list"`
	Overrides map[string]map[string]bool `koanf:"overrides"`

	Whitelist []string                   `koanf:"whitelist"`
	Blacklist []string                   `koanf:"blacklist"`
	Custom    map[string]map[string]bool `koanf:"custom"`
}

type quietHoursDoc struct {
	Enabled bool     `koanf:"enabled"`
	Start   string   `koanf:"start"`
	End     string   `koanf:"end"`
	Mute    []string `koanf:"mute"`
	Allow   []string `koanf:"allow"`
}

type loggingDoc struct {
	Enabled bool   `koanf:"enabled"`
	File    string `koanf:"file"`
	Level   string `koanf:"level"`
}

type decoderDoc struct {
	Encodings []string `koanf:"encodings"`
}

type invokerDoc struct {
	BaseDir         string            `koanf:"base_dir"`
	Timeout         time.Duration     `koanf:"timeout"`
	Concurrency     int               `koanf:"concurrency"`
	AllowedAbsolute []string          `koanf:"allowed_absolute"`
	Runtimes        map[string]string `koanf:"runtimes"`
}

// build converts the document into a Configuration. layout carries the
// channel declaration order read from the source file; names missing from it
// (for example ones introduced by environment variables) follow in sorted order.
func (d *document) build(layout fileLayout, source string) (*Configuration, error) {
	channels := d.Plugins
	legacy := false
	if !layout.hasPlugins && d.Plugins == nil && (layout.hasNotifications || d.Notifications != nil) {
		channels = d.Notifications
		legacy = true
	}
	order := layout.plugins
	if legacy {
		order = layout.notifications
	}

	cfg := &Configuration{
		Source:  source,
		Legacy:  legacy,
		Decoder: Decoder{Encodings: d.Decoder.Encodings},
		Invoker: Invoker{
			BaseDir:         expandHomePath(d.Invoker.BaseDir),
			Timeout:         d.Invoker.Timeout,
			Concurrency:     d.Invoker.Concurrency,
			AllowedAbsolute: expandHomePaths(d.Invoker.AllowedAbsolute),
			Runtimes:        normalizeRuntimes(d.Invoker.Runtimes),
		},
		Global: Global{
			Logging: Logging{
				Enabled: d.Logging.Enabled,
				File:    expandHomePath(d.Logging.File),
				Level:   strings.ToLower(d.Logging.Level),
			},
		},
	}

	qh, err := d.QuietHours.build()
	if err != nil {
		return nil, err
	}
	cfg.Global.QuietHours = qh

	for _, name := range orderedNames(channels, order) {
		if strings.HasPrefix(name, exampleChannelPrefix) {
			continue
		}
		ch, err := channels[name].build(name)
		if err != nil {
			return nil, err
		}
		cfg.Channels = append(cfg.Channels, ch)
	}

	return cfg, nil
}

func (c channelDoc) build(name string) (Channel, error) {
	ch := Channel{
		Name:    name,
		Enabled: c.Enabled == nil || *c.Enabled,
		Script:  c.Script,
		Events:  c.Events,
		Args:    c.Args,
		Timeout: c.Timeout,
	}
	if len(ch.Args) == 0 {
		ch.Args = c.Params
	}
	if ch.Events == nil {
		ch.Events = map[string]bool{}
	}
	if c.Tools != nil {
		tf, err := c.Tools.build()
		if err != nil {
			return Channel{}, &ValidationError{
				Field:   fmt.Sprintf("plugins.%s.tools", name),
				Message: err.Error(),
			}
		}
		ch.Tools = tf
	}
	return ch, nil
}

// build returns nil when the filter is disabled or the document names no
// tools and no overrides.
// In the legacy form a non-empty whitelist takes the list role and any
// blacklisted names are removed from it.
func (t *toolsDoc) build() (*ToolFilter, error) {
	if t.Enabled != nil && !*t.Enabled {
		return nil, nil
	}
	tf := &ToolFilter{
		Mode:      ToolMode(strings.ToLower(t.Mode)),
		List:      t.List,
		Overrides: t.Overrides,
	}

	if len(t.Custom) > 0 {
		if tf.Overrides == nil {
			tf.Overrides = make(map[string]map[string]bool, len(t.Custom))
		}
		for tool, events := range t.Custom {
			if _, exists := tf.Overrides[tool]; !exists {
				tf.Overrides[tool] = events
			}
		}
	}

	if tf.Mode == "" {
		switch {
		case len(t.Whitelist) > 0:
			tf.Mode = ToolWhitelist
			tf.List = without(t.Whitelist, t.Blacklist)
		case len(t.Blacklist) > 0:
			tf.Mode = ToolBlacklist
			tf.List = t.Blacklist
		case len(tf.List) > 0:
			return nil, fmt.Errorf("list given without mode (want whitelist or blacklist)")
		case len(tf.Overrides) > 0:
			// Overrides alone: nothing is excluded by a list.
			tf.Mode = ToolBlacklist
		default:
			return nil, nil
		}
	}

	if tf.Mode != ToolWhitelist && tf.Mode != ToolBlacklist {
		return nil, fmt.Errorf("invalid mode %q (want whitelist or blacklist)", t.Mode)
	}
	return tf, nil
}

func (q quietHoursDoc) build() (*QuietHours, error) {
	if !q.Enabled {
		return nil, nil
	}
	start, err := ParseClock(q.Start)
	if err != nil {
		return nil, &ValidationError{Field: "quiet_hours.start", Message: err.Error()}
	}
	end, err := ParseClock(q.End)
	if err != nil {
		return nil, &ValidationError{Field: "quiet_hours.end", Message: err.Error()}
	}
	return &QuietHours{
		Enabled: true,
		Start:   start,
		End:     end,
		Mute:    q.Mute,
		Allow:   q.Allow,
	}, nil
}

// orderedNames lists the keys of channels in declaration order
func orderedNames(channels map[string]channelDoc, order []string) []string {
	names := make([]string, 0, len(channels))
	seen := make(map[string]bool, len(channels))
	for _, name := range order {
		if _, ok := channels[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range channels {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// normalizeRuntimes accepts extension keys with or without the leading dot
func normalizeRuntimes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for ext, runtime := range in {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext == "" || runtime == "" {
			continue
		}
		out[ext] = runtime
	}
	return out
}

func without(list, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if !drop[item] {
			out = append(out, item)
		}
	}
	return out
}
