package match

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProviderConfig holds the resolved matching provider and API key.
type ProviderConfig struct {
	Provider string // "xai" or "gemini"
	APIKey   string
	BaseURL  string // xai only
	Model    string // optional override
	Timeout  time.Duration
}

// NewClientFromConfig creates a matching client for the configured
// provider.
func NewClientFromConfig(cfg ProviderConfig, log *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "xai", "":
		xc := DefaultXAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			xc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			xc.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			xc.Timeout = cfg.Timeout
		}
		return NewXAIClientWithConfig(xc, log), nil

	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model)

	default:
		return nil, fmt.Errorf("unknown match provider: %s (valid: xai, gemini)", cfg.Provider)
	}
}
