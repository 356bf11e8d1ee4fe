package swarm

import (
	"strings"
	"testing"
)

func TestClassifyHeavyKeyword(t *testing.T) {
	c := NewClassifier(nil)

	cases := []string{
		"run the database migration",
		"add authentication middleware",
		"review Security posture",
		"refactor the ingestion pipeline",
	}
	for _, desc := range cases {
		if got := c.Classify(desc); got != StrategyHeavy {
			t.Errorf("Classify(%q) = %s, want heavy", desc, got)
		}
	}
}

func TestClassifyLightKeyword(t *testing.T) {
	c := NewClassifier(nil)

	cases := []string{
		"fix a typo in the README",
		"update docs for the new flag",
		"rename the helper",
	}
	for _, desc := range cases {
		if got := c.Classify(desc); got != StrategyLight {
			t.Errorf("Classify(%q) = %s, want light", desc, got)
		}
	}
}

func TestClassifyHeavyBeatsLight(t *testing.T) {
	c := NewClassifier(nil)

	// Contains both "docs" (light) and "migration" (heavy).
	if got := c.Classify("write docs for the migration tool"); got != StrategyHeavy {
		t.Errorf("expected heavy to win, got %s", got)
	}
}

func TestClassifyLongDescriptionIsHeavy(t *testing.T) {
	c := NewClassifier(nil)

	long := strings.Repeat("do the thing ", 30)
	if len(long) <= DefaultLengthThreshold {
		t.Fatal("test description not long enough")
	}
	if got := c.Classify(long); got != StrategyHeavy {
		t.Errorf("expected heavy for long description, got %s", got)
	}
}

func TestClassifyDefaultsToStandard(t *testing.T) {
	c := NewClassifier(nil)

	if got := c.Classify("implement the export endpoint"); got != StrategyStandard {
		t.Errorf("expected standard, got %s", got)
	}
}

func TestModelFor(t *testing.T) {
	c := NewClassifier(map[Strategy]string{
		StrategyLight:    "model-small",
		StrategyStandard: "model-mid",
		StrategyHeavy:    "model-big",
	})

	if got := c.ModelFor("fix a typo"); got != "model-small" {
		t.Errorf("light model = %q", got)
	}
	if got := c.ModelFor("implement the export endpoint"); got != "model-mid" {
		t.Errorf("standard model = %q", got)
	}
	if got := c.ModelFor("schema redesign"); got != "model-big" {
		t.Errorf("heavy model = %q", got)
	}
}

func TestModelForUnconfigured(t *testing.T) {
	c := NewClassifier(nil)
	if got := c.ModelFor("anything"); got != "" {
		t.Errorf("expected empty model without configuration, got %q", got)
	}

	partial := NewClassifier(map[Strategy]string{StrategyHeavy: "model-big"})
	if got := partial.ModelFor("implement the export endpoint"); got != "" {
		t.Errorf("expected empty model for unconfigured strategy, got %q", got)
	}
}
