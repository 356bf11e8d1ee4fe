package planner

import "testing"

func TestParseTaskSpecsBareJSON(t *testing.T) {
	text := `[
		{"id": "t1", "description": "write the parser", "agent": "coder", "dependencies": []},
		{"id": "t2", "description": "test the parser", "agent": "tester", "dependencies": ["t1"], "priority": 2}
	]`

	specs := ParseTaskSpecs(text)
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].ID != "t1" || specs[0].Agent != "coder" {
		t.Errorf("unexpected first spec: %+v", specs[0])
	}
	if len(specs[1].DependsOn) != 1 || specs[1].DependsOn[0] != "t1" {
		t.Errorf("unexpected dependencies: %v", specs[1].DependsOn)
	}
	if specs[1].Priority != 2 {
		t.Errorf("expected priority 2, got %d", specs[1].Priority)
	}
}

func TestParseTaskSpecsMarkdownFenced(t *testing.T) {
	text := "Here is the plan:\n```json\n[{\"id\": \"t1\", \"description\": \"do it\", \"agent\": \"coder\", \"dependencies\": []}]\n```\nLet me know if you need changes."

	specs := ParseTaskSpecs(text)
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	if specs[0].Description != "do it" {
		t.Errorf("unexpected description: %q", specs[0].Description)
	}
}

func TestParseTaskSpecsSurroundingProse(t *testing.T) {
	text := `I broke the work down as follows.

[{"id": "a", "description": "first", "agent": "coder", "dependencies": []}]

This ordering minimizes rework.`

	specs := ParseTaskSpecs(text)
	if len(specs) != 1 || specs[0].ID != "a" {
		t.Fatalf("expected single spec a, got %v", specs)
	}
}

func TestParseTaskSpecsMalformedYieldsEmpty(t *testing.T) {
	cases := []string{
		"",
		"no json here at all",
		"[{not valid json}]",
		`{"id": "t1"}`, // object, not array
		"]broken[",
	}
	for _, c := range cases {
		if specs := ParseTaskSpecs(c); len(specs) != 0 {
			t.Errorf("input %q: expected empty result, got %v", c, specs)
		}
	}
}

func TestParseTaskSpecsDropsBlankDescriptions(t *testing.T) {
	text := `[
		{"id": "t1", "description": "real work", "agent": "coder", "dependencies": []},
		{"id": "t2", "description": "   ", "agent": "coder", "dependencies": []}
	]`

	specs := ParseTaskSpecs(text)
	if len(specs) != 1 || specs[0].ID != "t1" {
		t.Errorf("blank-description entries must be dropped, got %v", specs)
	}
}

func TestPlanContextEmpty(t *testing.T) {
	if !(PlanContext{}).Empty() {
		t.Error("zero PlanContext should be empty")
	}
	if (PlanContext{Failed: []string{"t2: timeout"}}).Empty() {
		t.Error("context with failures is not empty")
	}
}

func TestBulleted(t *testing.T) {
	if got := bulleted(nil); got != "- none" {
		t.Errorf("expected placeholder for empty list, got %q", got)
	}
	got := bulleted([]string{"a", "b"})
	if got != "- a\n- b\n" {
		t.Errorf("unexpected rendering: %q", got)
	}
}
