package config

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "ASKDESK_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (ASKDESK_*). A double underscore separates
// nesting levels, e.g. ASKDESK_SESSION__MAX_TURNS -> session.max_turns.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Decoding a slice onto a non-empty default only overwrites the leading
	// elements, so a configured phrase list replaces the defaults explicitly.
	if k.Exists("gate.uncertainty_phrases") {
		cfg.Gate.UncertaintyPhrases = k.Strings("gate.uncertainty_phrases")
	}

	return cfg, nil
}

// envKey maps ASKDESK_RETRIEVAL__TOP_K to retrieval.top_k.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Save writes the configuration to the given YAML file path. Durations are
// written in their string form ("8s"), the same form Load accepts.
func (c *Config) Save(path string) error {
	var node yamlv3.Node
	if err := node.Encode(c); err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	formatDurations(reflect.ValueOf(c), &node)

	data, err := yamlv3.Marshal(&node)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// formatDurations rewrites the encoded value of every time.Duration field in
// v, which yaml.v3 emits as integer nanoseconds, as a duration string.
func formatDurations(v reflect.Value, node *yamlv3.Node) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || node.Kind != yamlv3.MappingNode {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		value := mappingValue(node, name)
		if value == nil {
			continue
		}
		if t.Field(i).Type == durationType {
			value.Kind = yamlv3.ScalarNode
			value.Tag = "!!str"
			value.Value = time.Duration(v.Field(i).Int()).String()
			continue
		}
		formatDurations(v.Field(i), value)
	}
}

func mappingValue(m *yamlv3.Node, key string) *yamlv3.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// validBackends is the set of recognized generation backends.
var validBackends = map[BackendType]bool{
	BackendProxy:  true,
	BackendOpenAI: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Retrieval.BaseURL == "" {
		return fmt.Errorf("retrieval.base_url is required")
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must be non-negative")
	}
	if c.Retrieval.Timeout <= 0 {
		return fmt.Errorf("retrieval.timeout must be positive")
	}
	if math.IsNaN(c.Retrieval.Threshold) || c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be within [0, 1], got %v", c.Retrieval.Threshold)
	}
	if !validBackends[c.Generation.Backend] {
		return fmt.Errorf("invalid generation.backend %q: must be one of proxy, openai", c.Generation.Backend)
	}
	if c.Generation.Backend == BackendProxy && c.Generation.BaseURL == "" {
		return fmt.Errorf("generation.base_url is required for the proxy backend")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive")
	}
	if c.Generation.RPM < 0 {
		return fmt.Errorf("generation.rpm must be non-negative")
	}
	if c.Session.MaxTurns < 0 {
		return fmt.Errorf("session.max_turns must be non-negative")
	}
	if c.Session.IdleTTL < 0 || c.Session.MaxSessions < 0 {
		return fmt.Errorf("session eviction settings must be non-negative")
	}
	if c.Session.IdleTTL > 0 && c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("session.cleanup_interval must be positive when idle_ttl is set")
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format %q: must be text or json", c.Logging.Format)
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given backend.
func APIKeyEnvVar(backend BackendType) string {
	switch backend {
	case BackendOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
