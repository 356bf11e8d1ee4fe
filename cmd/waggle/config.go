package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trellison/waggle/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify waggle configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/waggle/config.yaml
Project-specific overrides can be placed in .waggle.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = config.MaskAPIKey(cfg.Anthropic.APIKey)
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("anthropic.aws_profile: %s\n", cfg.Anthropic.AWSProfile)
	fmt.Printf("swarm.max_parallel: %d\n", cfg.Swarm.MaxParallel)
	fmt.Printf("swarm.poll_interval: %s\n", cfg.Swarm.PollInterval)
	fmt.Printf("swarm.default_timeout: %s\n", cfg.Swarm.DefaultTimeout)
	fmt.Printf("swarm.token_budget: %d\n", cfg.Swarm.TokenBudget)
	fmt.Printf("swarm.max_pivots: %d\n", cfg.Swarm.MaxPivots)
	fmt.Printf("models.light: %s\n", cfg.Models.Light)
	fmt.Printf("models.standard: %s\n", cfg.Models.Standard)
	fmt.Printf("models.heavy: %s\n", cfg.Models.Heavy)
	fmt.Printf("inject.enabled: %t\n", cfg.Inject.Enabled)
	fmt.Printf("inject.dir: %s\n", cfg.Inject.Dir)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "swarm.max_parallel":
		return strconv.Itoa(cfg.Swarm.MaxParallel), nil
	case "swarm.poll_interval":
		return cfg.Swarm.PollInterval.String(), nil
	case "swarm.default_timeout":
		return cfg.Swarm.DefaultTimeout.String(), nil
	case "swarm.token_budget":
		return strconv.Itoa(cfg.Swarm.TokenBudget), nil
	case "swarm.max_pivots":
		return strconv.Itoa(cfg.Swarm.MaxPivots), nil
	case "models.light":
		return cfg.Models.Light, nil
	case "models.standard":
		return cfg.Models.Standard, nil
	case "models.heavy":
		return cfg.Models.Heavy, nil
	case "inject.enabled":
		return strconv.FormatBool(cfg.Inject.Enabled), nil
	case "inject.dir":
		return cfg.Inject.Dir, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "swarm.max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid value for %s: %s (want a positive integer)", key, value)
		}
		cfg.Swarm.MaxParallel = n
	case "swarm.poll_interval":
		d, err := parsePositiveDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.Swarm.PollInterval = d
	case "swarm.default_timeout":
		d, err := parsePositiveDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.Swarm.DefaultTimeout = d
	case "swarm.token_budget":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s (want a non-negative integer)", key, value)
		}
		cfg.Swarm.TokenBudget = n
	case "swarm.max_pivots":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %s (want an integer)", key, value)
		}
		cfg.Swarm.MaxPivots = n
	case "models.light":
		cfg.Models.Light = value
	case "models.standard":
		cfg.Models.Standard = value
	case "models.heavy":
		cfg.Models.Heavy = value
	case "inject.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		cfg.Inject.Enabled = b
	case "inject.dir":
		cfg.Inject.Dir = value
	case "tui.refresh_rate":
		d, err := parsePositiveDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parsePositiveDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
