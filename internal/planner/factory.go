package planner

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/config"
)

// NewFromConfig builds the full planner: one Gemini client per tier behind a
// router, wrapped in the prompt/parse layer.
func NewFromConfig(cfg config.PlannerConfig, logger *zap.Logger) (*LLMPlanner, error) {
	fast, err := NewGeminiClient(resolveModel(cfg, cfg.DefaultFastModel), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build fast-tier client: %w", err)
	}
	powerful, err := NewGeminiClient(resolveModel(cfg, cfg.DefaultPowerfulModel), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build powerful-tier client: %w", err)
	}
	router, err := NewRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	return New(router, cfg.RequestsPerSecond, logger), nil
}

// resolveModel looks the model name up in the configured model map, falling
// back to a bare Gemini entry. The API key always comes from the environment
// when the config omits it.
func resolveModel(cfg config.PlannerConfig, name string) config.LLMModelConfig {
	m, ok := cfg.Models[name]
	if !ok {
		m = config.LLMModelConfig{Provider: config.ProviderGemini, Model: name}
	}
	if m.Model == "" {
		m.Model = name
	}
	if m.APIKey == "" {
		m.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return m
}
