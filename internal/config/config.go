// Package config handles configuration loading and management for waggle.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for waggle.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Swarm     SwarmConfig     `mapstructure:"swarm"`
	Models    ModelsConfig    `mapstructure:"models"`
	Inject    InjectConfig    `mapstructure:"inject"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// SwarmConfig holds coordinator tuning defaults.
type SwarmConfig struct {
	MaxParallel    int           `mapstructure:"max_parallel"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	TokenBudget    int           `mapstructure:"token_budget"`
	MaxPivots      int           `mapstructure:"max_pivots"`
}

// ModelsConfig maps task strategies to model identifiers.
type ModelsConfig struct {
	Light    string `mapstructure:"light"`
	Standard string `mapstructure:"standard"`
	Heavy    string `mapstructure:"heavy"`
}

// InjectConfig holds drop-directory task injection settings.
type InjectConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// TUIConfig holds watch display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.waggle.yaml in current directory or parent)
// 3. User config (~/.config/waggle/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("swarm.max_parallel", cfg.Swarm.MaxParallel)
	v.Set("swarm.poll_interval", cfg.Swarm.PollInterval.String())
	v.Set("swarm.default_timeout", cfg.Swarm.DefaultTimeout.String())
	v.Set("swarm.token_budget", cfg.Swarm.TokenBudget)
	v.Set("swarm.max_pivots", cfg.Swarm.MaxPivots)
	v.Set("models.light", cfg.Models.Light)
	v.Set("models.standard", cfg.Models.Standard)
	v.Set("models.heavy", cfg.Models.Heavy)
	v.Set("inject.enabled", cfg.Inject.Enabled)
	v.Set("inject.dir", cfg.Inject.Dir)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("swarm.max_parallel", 4)
	v.SetDefault("swarm.poll_interval", "500ms")
	v.SetDefault("swarm.default_timeout", "10m")
	v.SetDefault("swarm.token_budget", 100000)
	v.SetDefault("swarm.max_pivots", 3)

	v.SetDefault("models.light", "claude-3-5-haiku-20241022")
	v.SetDefault("models.standard", "claude-sonnet-4-20250514")
	v.SetDefault("models.heavy", "claude-opus-4-20250514")

	v.SetDefault("inject.enabled", false)
	v.SetDefault("inject.dir", "")

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for waggle.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "waggle")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "waggle")
	}
	return filepath.Join(home, ".config", "waggle")
}

// findProjectConfig searches for .waggle.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".waggle.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in config values.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{},
		Swarm: SwarmConfig{
			MaxParallel:    4,
			PollInterval:   500 * time.Millisecond,
			DefaultTimeout: 10 * time.Minute,
			TokenBudget:    100000,
			MaxPivots:      3,
		},
		Models: ModelsConfig{
			Light:    "claude-3-5-haiku-20241022",
			Standard: "claude-sonnet-4-20250514",
			Heavy:    "claude-opus-4-20250514",
		},
		TUI: TUIConfig{RefreshRate: 100 * time.Millisecond},
	}
}
