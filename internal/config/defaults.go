package config

import "time"

// DefaultUncertaintyPhrases are reply fragments that signal the generator
// could not answer from its grounding context. Matching is case-insensitive.
var DefaultUncertaintyPhrases = []string{
	"i don't know",
	"i am not sure",
	"i’m not sure",
	"not sure",
	"cannot answer",
	"cannot find",
	"no information",
	"mujhe pata nahi",
	"pata nahi",
	"मुझे पता नहीं",
	"मुझे नहीं पता",
	"sorry, i don't",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	phrases := make([]string, len(DefaultUncertaintyPhrases))
	copy(phrases, DefaultUncertaintyPhrases)

	return &Config{
		Server: ServerConfig{
			Port:            3000,
			AllowAllOrigins: true,
		},
		Retrieval: RetrievalConfig{
			BaseURL:       "http://localhost:4001",
			Path:          "/internal/retrieve",
			TopK:          3,
			Timeout:       8 * time.Second,
			StatusTimeout: 5 * time.Second,
			Threshold:     0.25,
		},
		Generation: GenerationConfig{
			Backend:     BackendProxy,
			BaseURL:     "http://localhost:4001",
			Path:        "/internal/llm",
			Timeout:     15 * time.Second,
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Session: SessionConfig{
			MaxTurns:        6,
			CleanupInterval: time.Minute,
		},
		Handoff: HandoffConfig{
			Contact:         "staff@sihchatbot.com",
			DBPath:          "data/askdesk.db",
			RecordAutomatic: true,
		},
		Gate: GateConfig{
			UncertaintyPhrases: phrases,
		},
		Language: LanguageConfig{
			Default: "en-US",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
