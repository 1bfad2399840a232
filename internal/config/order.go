package config

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// fileLayout records what koanf's unordered maps lose: which channel
// sections exist at the top level and the order their keys were declared in.
type fileLayout struct {
	hasPlugins       bool
	hasNotifications bool
	plugins          []string
	notifications    []string
}

// readLayout reads the section layout of a config file. JSON is scanned with
// gjson, which iterates object members in document order; everything else is
// walked as a YAML node tree.
func readLayout(data []byte, isJSON bool) (fileLayout, error) {
	var layout fileLayout
	if len(bytes.TrimSpace(data)) == 0 {
		return layout, nil
	}
	if isJSON {
		return readJSONLayout(data)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return layout, fmt.Errorf("reading channel order: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return layout, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return layout, nil
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		switch key.Value {
		case "plugins":
			layout.hasPlugins = true
			layout.plugins = mappingKeys(value)
		case "notifications":
			layout.hasNotifications = true
			layout.notifications = mappingKeys(value)
		}
	}
	return layout, nil
}

func readJSONLayout(data []byte) (fileLayout, error) {
	var layout fileLayout
	if !gjson.ValidBytes(data) {
		return layout, fmt.Errorf("reading channel order: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if plugins := doc.Get("plugins"); plugins.Exists() {
		layout.hasPlugins = true
		layout.plugins = objectKeys(plugins)
	}
	if legacy := doc.Get("notifications"); legacy.Exists() {
		layout.hasNotifications = true
		layout.notifications = objectKeys(legacy)
	}
	return layout, nil
}

func objectKeys(obj gjson.Result) []string {
	var keys []string
	obj.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

func mappingKeys(n *yaml.Node) []string {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}
