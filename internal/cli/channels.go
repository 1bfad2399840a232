package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "channels",
		Short:   "List configured channels in dispatch order",
		GroupID: GroupInspect,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := loadRuntime(cmd)
			asYAML, _ := cmd.Flags().GetBool("yaml")
			if asYAML {
				return writeChannelsYAML(cmd.OutOrStdout(), rt.cfg.Channels)
			}
			displayChannels(cmd.OutOrStdout(), rt)
			return nil
		},
	}
	cmd.Flags().Bool("yaml", false, "Print the effective channel configuration as YAML")
	return cmd
}

func displayChannels(out io.Writer, rt *runtimeEnv) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if rt.cfg.Legacy {
		fmt.Fprintln(out, "(channels read from the legacy 'notifications' key)")
	}
	if len(rt.cfg.Channels) == 0 {
		fmt.Fprintln(out, "No channels configured.")
		return
	}

	for i, ch := range rt.cfg.Channels {
		state := green("enabled")
		if !ch.Enabled {
			state = red("disabled")
		}
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, ch.Name, state)
		fmt.Fprintf(out, "   script:  %s\n", ch.Script)
		fmt.Fprintf(out, "   events:  %s\n", joinOrDash(enabledEvents(ch)))
		if ch.Tools != nil {
			fmt.Fprintf(out, "   tools:   %s %s\n", ch.Tools.Mode, joinOrDash(ch.Tools.List))
			for _, tool := range sortedKeys(ch.Tools.Overrides) {
				fmt.Fprintf(out, "   override %s: %s\n", tool, formatFlags(ch.Tools.Overrides[tool]))
			}
		}
		if ch.Timeout > 0 {
			fmt.Fprintf(out, "   timeout: %s\n", ch.Timeout)
		}
	}
}

// channelView is the YAML shape printed by channels --yaml
type channelView struct {
	Enabled bool            `yaml:"enabled"`
	Script  string          `yaml:"script"`
	Events  map[string]bool `yaml:"events,omitempty"`
	Tools   *toolsView      `yaml:"tools,omitempty"`
	Args    []string        `yaml:"args,omitempty"`
	Timeout string          `yaml:"timeout,omitempty"`
}

type toolsView struct {
	Mode      string                     `yaml:"mode"`
	List      []string                   `yaml:"list,omitempty"`
	Overrides map[string]map[string]bool `yaml:"overrides,omitempty"`
}

// writeChannelsYAML prints channels under a plugins mapping, keeping the
// dispatch order
func writeChannelsYAML(out io.Writer, channels []config.Channel) error {
	plugins := &yaml.Node{Kind: yaml.MappingNode}
	for _, ch := range channels {
		view := channelView{
			Enabled: ch.Enabled,
			Script:  ch.Script,
			Events:  ch.Events,
			Args:    ch.Args,
		}
		if ch.Timeout > 0 {
			view.Timeout = ch.Timeout.String()
		}
		if ch.Tools != nil {
			view.Tools = &toolsView{Mode: string(ch.Tools.Mode), List: ch.Tools.List, Overrides: ch.Tools.Overrides}
		}

		var value yaml.Node
		if err := value.Encode(view); err != nil {
			return fmt.Errorf("encoding channel %s: %w", ch.Name, err)
		}
		plugins.Content = append(plugins.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: ch.Name},
			&value,
		)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "plugins"},
		plugins,
	}}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing channels: %w", err)
	}
	return enc.Close()
}

func enabledEvents(ch config.Channel) []string {
	var events []string
	for name, on := range ch.Events {
		if on {
			events = append(events, name)
		}
	}
	slices.Sort(events)
	return events
}

func formatFlags(flags map[string]bool) string {
	parts := make([]string, 0, len(flags))
	for _, name := range sortedKeys(flags) {
		parts = append(parts, fmt.Sprintf("%s=%t", name, flags[name]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
