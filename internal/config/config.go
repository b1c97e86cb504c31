package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all magnetpress configuration.
type Config struct {
	// Character asset library
	Assets AssetsConfig `yaml:"assets"`

	// Arc-text rendering
	Render RenderConfig `yaml:"render"`

	// AI-assisted character matching
	Matcher MatcherConfig `yaml:"matcher"`

	// Completion ledger
	Ledger LedgerConfig `yaml:"ledger"`

	// Print sheet assembly
	Assembly AssemblyConfig `yaml:"assembly"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AssetsConfig locates the character image library.
type AssetsConfig struct {
	Dir string `yaml:"dir"`
}

// RenderConfig configures the personalization renderer.
type RenderConfig struct {
	OutputDir string `yaml:"output_dir"`

	// PrimaryFont is the display face used for most assets; ScriptFont
	// is used for script-styled asset variants.
	PrimaryFont string `yaml:"primary_font"`
	ScriptFont  string `yaml:"script_font"`
}

// MatcherConfig configures the AI matching service.
type MatcherConfig struct {
	Provider string `yaml:"provider"` // xai, gemini
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// FastModel handles small batches; ThoroughModel takes over when
	// the batch grows past FastThreshold items.
	FastModel     string `yaml:"fast_model"`
	ThoroughModel string `yaml:"thorough_model"`
	FastThreshold int    `yaml:"fast_threshold"`
}

// LedgerConfig configures the completion ledger.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// AssemblyConfig configures PDF sheet assembly.
type AssemblyConfig struct {
	Template  string `yaml:"template"`
	OutputDir string `yaml:"output_dir"`

	// Slot geometry in PDF points from the bottom-left corner.
	SlotX       float64 `yaml:"slot_x"`
	TopSlotY    float64 `yaml:"top_slot_y"`
	BottomSlotY float64 `yaml:"bottom_slot_y"`
	SlotScale   float64 `yaml:"slot_scale"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Assets: AssetsConfig{
			Dir: "images",
		},

		Render: RenderConfig{
			OutputDir:   "outputs",
			PrimaryFont: "fonts/waltographUI.ttf",
			ScriptFont:  "fonts/blueberry.ttf",
		},

		Matcher: MatcherConfig{
			Provider:      "xai",
			Timeout:       "60s",
			FastModel:     "grok-4-1-fast-non-reasoning",
			ThoroughModel: "grok-4-1-fast-reasoning",
			FastThreshold: 6,
		},

		Ledger: LedgerConfig{
			Path: "data/order_state.json",
		},

		Assembly: AssemblyConfig{
			Template:    "format.pdf",
			OutputDir:   ".",
			SlotX:       121,
			TopSlotY:    396,
			BottomSlotY: 36,
			SlotScale:   500.0 / 1500.0 * 1.027,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		c.Matcher.APIKey = key
		if c.Matcher.Provider == "" {
			c.Matcher.Provider = "xai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Matcher.APIKey == "" {
		c.Matcher.APIKey = key
		c.Matcher.Provider = "gemini"
	}

	if dir := os.Getenv("MAGNETPRESS_IMAGES"); dir != "" {
		c.Assets.Dir = dir
	}
	if tpl := os.Getenv("MAGNETPRESS_TEMPLATE"); tpl != "" {
		c.Assembly.Template = tpl
	}
}

// MatcherTimeout returns the matching service timeout as a duration.
func (c *Config) MatcherTimeout() time.Duration {
	d, err := time.ParseDuration(c.Matcher.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ValidProviders lists all supported matching providers.
var ValidProviders = []string{"xai", "gemini"}

// Validate validates the configuration. A missing API key is not an
// error here: matching degrades to exact-only without one.
func (c *Config) Validate() error {
	if c.Matcher.Provider != "" {
		validProvider := false
		for _, p := range ValidProviders {
			if c.Matcher.Provider == p {
				validProvider = true
				break
			}
		}
		if !validProvider {
			return fmt.Errorf("invalid matcher provider: %s (valid: %v)", c.Matcher.Provider, ValidProviders)
		}
	}

	if c.Matcher.FastThreshold < 0 {
		return fmt.Errorf("matcher fast_threshold must be >= 0, got %d", c.Matcher.FastThreshold)
	}

	if c.Assets.Dir == "" {
		return fmt.Errorf("assets dir not configured")
	}
	if c.Assembly.Template == "" {
		return fmt.Errorf("assembly template not configured")
	}
	if c.Assembly.SlotScale <= 0 {
		return fmt.Errorf("assembly slot_scale must be > 0")
	}
	if c.Assembly.TopSlotY <= c.Assembly.BottomSlotY {
		return fmt.Errorf("assembly top_slot_y must be above bottom_slot_y")
	}

	return nil
}
