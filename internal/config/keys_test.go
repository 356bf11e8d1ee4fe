package config

import (
	"errors"
	"strings"
	"testing"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-key-123456789")

	key, err := GetAPIKey(nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if key != "sk-ant-env-key-123456789" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := &Config{}
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if key != "sk-ant-REDACTED" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(&Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("sk-ant-abcdefghijklmnop"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := ValidateAPIKey(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("empty key: %v", err)
	}
	if err := ValidateAPIKey("sk-wrong-prefix-123456"); err == nil {
		t.Error("wrong prefix accepted")
	}
	if err := ValidateAPIKey("sk-ant-short"); err == nil {
		t.Error("short key accepted")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("empty mask = %q", got)
	}
	if got := MaskAPIKey("sk-ant-short"); got != "***" {
		t.Errorf("short mask = %q", got)
	}

	masked := MaskAPIKey("sk-ant-REDACTED")
	if !strings.HasPrefix(masked, "sk-ant-") || !strings.HasSuffix(masked, "wxyz") {
		t.Errorf("mask = %q", masked)
	}
	if strings.Contains(masked, "abcdefghijklmnop") {
		t.Errorf("mask leaks key body: %q", masked)
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if got := GetAPIKeySource(&Config{}); got != KeySourceNone {
		t.Errorf("source = %s", got)
	}

	cfg := &Config{}
	cfg.Anthropic.UseBedrock = true
	if got := GetAPIKeySource(cfg); got != KeySourceBedrock {
		t.Errorf("bedrock source = %s", got)
	}

	cfg = &Config{}
	cfg.Anthropic.APIKey = "sk-ant-xyz"
	if got := GetAPIKeySource(cfg); got != KeySourceConfig {
		t.Errorf("config source = %s", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	if got := GetAPIKeySource(cfg); got != KeySourceEnv {
		t.Errorf("env source = %s", got)
	}
}
