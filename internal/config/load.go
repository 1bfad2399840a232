package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of environment variable overrides.
// Nested keys are separated by a double underscore:
// HOOKRELAY_QUIET_HOURS__ENABLED=true sets quiet_hours.enabled.
const EnvPrefix = "HOOKRELAY_"

// EnvConfigPath names the config file when --config is not given.
// It is not itself a configuration key.
const EnvConfigPath = EnvPrefix + "CONFIG"

// candidateNames are tried in order by Discover. notification-config.json is
// the file name used by older installs.
var candidateNames = []string{"config.yaml", "config.yml", "config.json", "notification-config.json"}

// DefaultDir returns ~/.hookrelay
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hookrelay"
	}
	return filepath.Join(home, ".hookrelay")
}

// Discover returns the first existing config file in dir, or "" if none
func Discover(dir string) string {
	for _, name := range candidateNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load loads configuration from defaults, the file at path (if non-empty),
// and environment variables, in increasing priority. A missing file is an
// error; use LoadOrDefault for the recovering variant.
func Load(path string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("applying default %s: %w", key, err)
		}
	}

	var layout fileLayout
	if path != "" {
		path = expandHomePath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, &ValidationError{FilePath: path, Message: cleanParseError(err)}
		}

		layout, err = readLayout(data, isJSONPath(path))
		if err != nil {
			return nil, &ValidationError{FilePath: path, Message: err.Error()}
		}
	}

	// Override with environment variables (highest priority)
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				secondsToDurationHook(),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &doc,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := doc.build(layout, path)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.FilePath == "" {
			ve.FilePath = path
		}
		return nil, err
	}

	if cfg.Invoker.BaseDir == "" {
		cfg.Invoker.BaseDir = defaultBaseDir(path)
	}
	if len(cfg.Decoder.Encodings) == 0 {
		cfg.Decoder.Encodings = defaultEncodings
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault never fails: any load or validation error is logged and the
// safe Default configuration is returned instead.
func LoadOrDefault(path string, logger *zap.Logger) *Configuration {
	cfg, err := Load(path)
	if err != nil {
		logger.Warn("using default configuration", zap.String("path", path), zap.Error(err))
		def := Default()
		def.Invoker.BaseDir = defaultBaseDir(path)
		return def
	}
	if cfg.Legacy {
		logger.Debug("channels read from legacy 'notifications' key", zap.String("path", path))
	}
	return cfg
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, &ValidationError{FilePath: path, Message: "unsupported config format (want .yaml, .yml or .json)"}
	}
}

// defaultBaseDir resolves handler scripts next to the config file, or in the
// working directory when there is no file
func defaultBaseDir(path string) string {
	if path != "" {
		if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
			return abs
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// envTransform converts environment variable names to config keys.
// Example: HOOKRELAY_INVOKER__TIMEOUT -> invoker.timeout
// HOOKRELAY_CONFIG is skipped.
func envTransform(s string) string {
	if s == EnvConfigPath {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// secondsToDurationHook reads bare numbers as seconds, so "timeout: 5" is
// five seconds rather than five nanoseconds. Values with a unit ("750ms")
// are left to StringToTimeDurationHookFunc.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case uint64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// cleanParseError keeps the parser's own message without koanf's wrapping
func cleanParseError(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, "yaml: "); idx >= 0 {
		return msg[idx:]
	}
	return msg
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

func expandHomePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, expandHomePath(p))
	}
	return out
}
