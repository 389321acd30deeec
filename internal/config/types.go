package config

import "time"

// BackendType identifies how generation requests are served.
type BackendType string

const (
	// BackendProxy posts message sequences to an internal generation proxy.
	BackendProxy BackendType = "proxy"
	// BackendOpenAI talks to an OpenAI-compatible chat completions API directly.
	BackendOpenAI BackendType = "openai"
)

// Config is the top-level askdesk configuration, corresponding to .askdesk.yml.
type Config struct {
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Generation GenerationConfig `yaml:"generation" koanf:"generation"`
	Session    SessionConfig    `yaml:"session" koanf:"session"`
	Handoff    HandoffConfig    `yaml:"handoff" koanf:"handoff"`
	Admin      AdminConfig      `yaml:"admin" koanf:"admin"`
	Gate       GateConfig       `yaml:"gate" koanf:"gate"`
	Language   LanguageConfig   `yaml:"language" koanf:"language"`
	Logging    LoggingConfig    `yaml:"logging" koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// RetrievalConfig describes the knowledge-retrieval collaborator.
type RetrievalConfig struct {
	BaseURL       string        `yaml:"base_url" koanf:"base_url"`
	Path          string        `yaml:"path" koanf:"path"`
	TopK          int           `yaml:"top_k" koanf:"top_k"`
	Timeout       time.Duration `yaml:"timeout" koanf:"timeout"`
	StatusTimeout time.Duration `yaml:"status_timeout" koanf:"status_timeout"`
	// Threshold is the minimum top-hit score for an answer to be trusted.
	Threshold float64 `yaml:"threshold" koanf:"threshold"`
}

// GenerationConfig describes the language-generation collaborator.
type GenerationConfig struct {
	Backend     BackendType   `yaml:"backend" koanf:"backend"`
	BaseURL     string        `yaml:"base_url" koanf:"base_url"`
	Path        string        `yaml:"path" koanf:"path"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
	Model       string        `yaml:"model" koanf:"model"`
	MaxTokens   int           `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64       `yaml:"temperature" koanf:"temperature"`
	RPM         int           `yaml:"rpm" koanf:"rpm"`
}

// SessionConfig controls conversation history retention.
type SessionConfig struct {
	MaxTurns        int           `yaml:"max_turns" koanf:"max_turns"`
	IdleTTL         time.Duration `yaml:"idle_ttl" koanf:"idle_ttl"`
	MaxSessions     int           `yaml:"max_sessions" koanf:"max_sessions"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" koanf:"cleanup_interval"`
}

// HandoffConfig controls human escalation.
type HandoffConfig struct {
	Contact         string `yaml:"contact" koanf:"contact"`
	DBPath          string `yaml:"db_path" koanf:"db_path"`
	RecordAutomatic bool   `yaml:"record_automatic" koanf:"record_automatic"`
}

// AdminConfig guards the /admin routes. An empty token disables them.
type AdminConfig struct {
	Token string `yaml:"token" koanf:"token"`
}

// GateConfig holds the data-driven inputs of the confidence gate.
type GateConfig struct {
	UncertaintyPhrases []string `yaml:"uncertainty_phrases" koanf:"uncertainty_phrases"`
}

// LanguageConfig holds language defaults.
type LanguageConfig struct {
	Default string `yaml:"default" koanf:"default"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
