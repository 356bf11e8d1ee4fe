// Package agent provides the Claude-backed task executor. It is the default
// capability a swarm routes tasks to: each task's description (plus the
// outputs of its completed dependencies) becomes one messages-API call.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/trellison/waggle/internal/dispatch"
	"github.com/trellison/waggle/internal/planner"
	"github.com/trellison/waggle/internal/runner"
	"github.com/trellison/waggle/pkg/models"
)

const systemPrompt = "You are a worker agent in a parallel task swarm. " +
	"Complete the task you are given and reply with the result only. " +
	"Outputs of prerequisite tasks are provided as context; build on them, do not redo them."

// Claude executes tasks by calling the Anthropic messages API.
type Claude struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// New creates a Claude executor. Transport settings (API key or Bedrock)
// come from the same config the planner uses.
func New(cfg planner.ClaudeConfig) (*Claude, error) {
	client, err := planner.NewClient(cfg)
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

	return &Claude{client: client, model: model, maxTokens: maxTokens}, nil
}

// Exec implements dispatch.Executor. The task description arrives under the
// runner.TaskKey argument; a per-task model override, if the classifier set
// one, arrives under "model".
func (c *Claude) Exec(ctx context.Context, args map[string]any) (*dispatch.Output, error) {
	prompt := buildPrompt(args)
	if prompt == "" {
		return nil, fmt.Errorf("task has no description to execute")
	}

	model := c.model
	if m, ok := args["model"].(string); ok && m != "" {
		model = anthropic.Model(m)
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent call: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return &dispatch.Output{
		Value: text.String(),
		Usage: models.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// buildPrompt assembles the user message from the task description and any
// injected dependency outputs, sorted for deterministic prompts.
func buildPrompt(args map[string]any) string {
	task, _ := args[runner.TaskKey].(string)
	if strings.TrimSpace(task) == "" {
		return ""
	}

	var depKeys []string
	for k := range args {
		if strings.HasPrefix(k, runner.DepKeyPrefix) {
			depKeys = append(depKeys, k)
		}
	}
	sort.Strings(depKeys)

	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(task)

	if len(depKeys) > 0 {
		b.WriteString("\n\nOutputs from prerequisite tasks:\n")
		for _, k := range depKeys {
			id := strings.TrimPrefix(k, runner.DepKeyPrefix)
			b.WriteString(fmt.Sprintf("[%s]\n%v\n", id, args[k]))
		}
	}
	return b.String()
}
