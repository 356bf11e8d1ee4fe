package planner

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/trellison/waggle/pkg/models"
)

// decompositionPrompt asks for the initial task breakdown.
const decompositionPrompt = `Break this request into parallelizable tasks, each sized for a single agent.

Request:
%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "id": "short-unique-id",
    "description": "What the task does",
    "agent": "capability name to execute it",
    "dependencies": ["id of prerequisite task"],
    "priority": 1
  }
]

Guidelines:
- Tasks should be as independent as possible to allow parallel execution
- Only add dependencies when task A genuinely must complete before task B
- Use [] for dependencies when there are none
- Higher priority runs earlier among tasks that are ready at the same time`

// pivotPromptSuffix conveys prior progress when re-planning after failures.
const pivotPromptSuffix = `

Progress so far. Do NOT recreate completed work:
Completed:
%s
Failed:
%s
%s
Plan only the remaining work, routing around the failures above.`

// ClaudeConfig configures the Claude-backed planner.
type ClaudeConfig struct {
	// Model is the Claude model to use for decomposition calls.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// MaxTokens bounds the decomposition response. Zero means a default.
	MaxTokens int64
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name.
	AWSProfile string
	// OnUsage, if set, is called with the token usage of every planner
	// call. Wired to the budget meter.
	OnUsage func(models.Usage)
}

// ClaudePlanner decomposes requests by calling the Anthropic messages API.
type ClaudePlanner struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	onUsage   func(models.Usage)
}

// NewClient builds an Anthropic client per the config's transport settings:
// the direct API with a key, or AWS Bedrock. Shared by the planner and the
// task executor so both ride the same transport.
func NewClient(cfg ClaudeConfig) (anthropic.Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return anthropic.Client{}, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return anthropic.NewClient(opts...), nil
}

// NewClaudePlanner creates a planner backed by the Anthropic API or, when
// configured, AWS Bedrock.
func NewClaudePlanner(cfg ClaudeConfig) (*ClaudePlanner, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &ClaudePlanner{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		onUsage:   cfg.OnUsage,
	}, nil
}

// Decompose asks Claude to break the request into tasks. Transport failures
// return an error; malformed planner output returns an empty list, which the
// coordinator treats as "no plan available" rather than a crash.
func (p *ClaudePlanner) Decompose(ctx context.Context, request string, pc PlanContext) ([]TaskSpec, error) {
	prompt := fmt.Sprintf(decompositionPrompt, request)
	if !pc.Empty() {
		notes := ""
		if len(pc.Notes) > 0 {
			notes = "Observations:\n" + bulleted(pc.Notes)
		}
		prompt += fmt.Sprintf(pivotPromptSuffix, bulleted(pc.Completed), bulleted(pc.Failed), notes)
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: "You are a planning assistant that decomposes work into parallelizable tasks."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner call: %w", err)
	}

	if p.onUsage != nil {
		p.onUsage(models.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		})
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	specs := ParseTaskSpecs(text.String())
	if len(specs) == 0 {
		log.Printf("[planner] decomposition returned no parseable tasks (%d bytes of text)", text.Len())
	}
	return specs, nil
}

// bulleted renders lines as a markdown bullet list, or "- none" when empty.
func bulleted(lines []string) string {
	if len(lines) == 0 {
		return "- none"
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

var _ Planner = (*ClaudePlanner)(nil)
