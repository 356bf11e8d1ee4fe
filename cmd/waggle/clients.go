package main

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/trellison/waggle/internal/budget"
	"github.com/trellison/waggle/internal/config"
	"github.com/trellison/waggle/internal/planner"
)

// newClaudeConfig resolves transport settings from the loaded config. The
// meter, when non-nil, receives every call's token usage.
func newClaudeConfig(cfg *config.Config, meter *budget.Meter) (planner.ClaudeConfig, error) {
	cc := planner.ClaudeConfig{
		Model:         anthropic.Model(cfg.Models.Standard),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if meter != nil {
		cc.OnUsage = meter.Record
	}

	if !cfg.Anthropic.UseBedrock {
		apiKey, err := config.GetAPIKey(cfg)
		if err != nil {
			return planner.ClaudeConfig{}, err
		}
		cc.APIKey = apiKey
	}
	return cc, nil
}
