package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	ASR         ASRConfig         `yaml:"asr"`
	PostProcess PostProcessConfig `yaml:"postprocess"`
	Hotkey      HotkeyConfig      `yaml:"hotkey"`
	Inject      InjectConfig      `yaml:"inject"`
	LogLevel    string            `yaml:"log_level"`
}

// ASRConfig holds transcription backend settings. The API keys are opaque
// bearer tokens; a non-empty fallback key is what enables the batch race.
type ASRConfig struct {
	DashScopeAPIKey   string `yaml:"dashscope_api_key"`
	SiliconFlowAPIKey string `yaml:"siliconflow_api_key"`
	UseRealtime       bool   `yaml:"use_realtime"`
	Language          string `yaml:"language"`
}

// PostProcessConfig holds optional LLM transcript polishing settings.
// Disabled by default; when enabled, the transcript passes through the
// completion endpoint before insertion. Empty endpoint, model, or prompt
// fall back to the processor defaults.
type PostProcessConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	SystemPrompt string `yaml:"system_prompt"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"`
	Mode string   `yaml:"mode"` // "hold" or "toggle"
}

// InjectConfig holds text injection settings.
type InjectConfig struct {
	Method string `yaml:"method"` // "type" or "paste"
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voxkey")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		ASR: ASRConfig{
			UseRealtime: true,
			Language:    "zh",
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "d"},
			Mode: "hold",
		},
		Inject: InjectConfig{
			Method: "type",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults, then API keys are overridden from the environment if set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv overrides credentials from the environment. Environment wins over
// the file so keys can stay out of dotfiles entirely.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DASHSCOPE_API_KEY"); v != "" {
		c.ASR.DashScopeAPIKey = v
	}
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		c.ASR.SiliconFlowAPIKey = v
	}
	if v := os.Getenv("POSTPROCESS_API_KEY"); v != "" {
		c.PostProcess.APIKey = v
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.ASR.DashScopeAPIKey == "" {
		return fmt.Errorf("asr.dashscope_api_key must not be empty (or set DASHSCOPE_API_KEY)")
	}

	if c.ASR.Language == "" {
		return fmt.Errorf("asr.language must not be empty")
	}

	if c.PostProcess.Enabled && c.PostProcess.APIKey == "" {
		return fmt.Errorf("postprocess.api_key must not be empty when postprocess is enabled (or set POSTPROCESS_API_KEY)")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}

	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.Inject.Method {
	case "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"type\" or \"paste\", got %q", c.Inject.Method)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
