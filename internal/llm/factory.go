package llm

import (
	"fmt"
	"net/http"
	"os"

	"github.com/ziadkadry99/askdesk/internal/config"
)

// NewProvider builds the generation backend described by cfg, wrapped in a
// rate limiter when cfg.RPM is positive.
func NewProvider(cfg config.GenerationConfig, httpClient *http.Client) (Provider, error) {
	var p Provider
	switch cfg.Backend {
	case config.BackendProxy, "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("generation.base_url is required for the proxy backend")
		}
		p = NewProxyProvider(cfg.BaseURL, cfg.Path, httpClient)

	case config.BackendOpenAI:
		envVar := config.APIKeyEnvVar(cfg.Backend)
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", envVar)
		}
		p = NewOpenAIProvider(apiKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Temperature)

	default:
		return nil, fmt.Errorf("unsupported generation backend: %s", cfg.Backend)
	}

	return NewRateLimitedProvider(p, cfg.RPM), nil
}
