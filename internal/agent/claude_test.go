package agent

import (
	"strings"
	"testing"
)

func TestBuildPromptTaskOnly(t *testing.T) {
	prompt := buildPrompt(map[string]any{"task": "summarize the changelog"})
	if !strings.Contains(prompt, "summarize the changelog") {
		t.Errorf("prompt missing task: %q", prompt)
	}
	if strings.Contains(prompt, "prerequisite") {
		t.Errorf("prompt mentions dependencies without any: %q", prompt)
	}
}

func TestBuildPromptIncludesDepOutputs(t *testing.T) {
	prompt := buildPrompt(map[string]any{
		"task":    "merge the fragments",
		"dep:b":   "second fragment",
		"dep:a":   "first fragment",
		"unused":  42,
		"model":   "some-model",
		"verbose": true,
	})

	if !strings.Contains(prompt, "[a]\nfirst fragment") || !strings.Contains(prompt, "[b]\nsecond fragment") {
		t.Errorf("prompt missing dependency outputs: %q", prompt)
	}
	// Deterministic ordering: a before b.
	if strings.Index(prompt, "[a]") > strings.Index(prompt, "[b]") {
		t.Errorf("dependency outputs not sorted: %q", prompt)
	}
	if strings.Contains(prompt, "some-model") || strings.Contains(prompt, "42") {
		t.Errorf("non-dependency args leaked into prompt: %q", prompt)
	}
}

func TestBuildPromptEmptyTask(t *testing.T) {
	if got := buildPrompt(map[string]any{"task": "   "}); got != "" {
		t.Errorf("expected empty prompt for blank task, got %q", got)
	}
	if got := buildPrompt(map[string]any{}); got != "" {
		t.Errorf("expected empty prompt for missing task, got %q", got)
	}
}
