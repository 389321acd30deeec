package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to askdesk! Let's configure your assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Retrieval service.
	retrievalPrompt := promptui.Prompt{
		Label:   "Retrieval service base URL",
		Default: cfg.Retrieval.BaseURL,
	}
	retrievalURL, err := retrievalPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("retrieval url: %w", err)
	}
	cfg.Retrieval.BaseURL = retrievalURL

	// 2. Generation backend.
	backendPrompt := promptui.Select{
		Label: "Select generation backend",
		Items: []string{
			"proxy  - internal LLM proxy (POST {messages})",
			"openai - OpenAI-compatible chat completions",
		},
	}
	backendIdx, _, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend selection: %w", err)
	}
	backends := []BackendType{BackendProxy, BackendOpenAI}
	cfg.Generation.Backend = backends[backendIdx]

	switch cfg.Generation.Backend {
	case BackendProxy:
		proxyPrompt := promptui.Prompt{
			Label:   "Generation proxy base URL",
			Default: retrievalURL,
		}
		proxyURL, err := proxyPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("generation url: %w", err)
		}
		cfg.Generation.BaseURL = proxyURL
	case BackendOpenAI:
		modelPrompt := promptui.Prompt{
			Label:   "Model",
			Default: "gpt-4o-mini",
		}
		model, err := modelPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		cfg.Generation.Model = model
		cfg.Generation.BaseURL = ""
	}

	// 3. Confidence threshold.
	thresholdPrompt := promptui.Prompt{
		Label:   "Retrieval confidence threshold (0-1)",
		Default: strconv.FormatFloat(cfg.Retrieval.Threshold, 'f', -1, 64),
		Validate: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 || v > 1 {
				return fmt.Errorf("enter a number between 0 and 1")
			}
			return nil
		},
	}
	thresholdStr, err := thresholdPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	cfg.Retrieval.Threshold, _ = strconv.ParseFloat(thresholdStr, 64)

	// 4. History retention.
	turnsPrompt := promptui.Prompt{
		Label:   "Turns of history kept per session",
		Default: strconv.Itoa(cfg.Session.MaxTurns),
		Validate: func(s string) error {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				return fmt.Errorf("enter a non-negative integer")
			}
			return nil
		},
	}
	turnsStr, err := turnsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("max turns: %w", err)
	}
	cfg.Session.MaxTurns, _ = strconv.Atoi(turnsStr)

	// 5. Human contact.
	contactPrompt := promptui.Prompt{
		Label:   "Human contact shown on escalation",
		Default: cfg.Handoff.Contact,
	}
	contact, err := contactPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("contact: %w", err)
	}
	cfg.Handoff.Contact = contact

	// 6. Admin token.
	tokenPrompt := promptui.Prompt{
		Label: "Admin token (leave blank to disable /admin)",
		Mask:  '*',
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("admin token: %w", err)
	}
	cfg.Admin.Token = token

	// 7. Extra uncertainty phrases.
	phrasesPrompt := promptui.Prompt{
		Label:   "Extra uncertainty phrases (comma-separated, leave blank for defaults)",
		Default: "",
	}
	phrasesStr, err := phrasesPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("uncertainty phrases: %w", err)
	}
	if phrasesStr != "" {
		cfg.Gate.UncertaintyPhrases = append(cfg.Gate.UncertaintyPhrases, splitAndTrim(phrasesStr)...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if envVar := APIKeyEnvVar(cfg.Generation.Backend); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running askdesk serve.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
