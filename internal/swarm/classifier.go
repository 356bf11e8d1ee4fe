package swarm

import "strings"

// Strategy selects how much model goes at a task. It is a pluggable
// pre-dispatch hint, not part of the scheduling contract.
type Strategy string

const (
	// StrategyLight suits trivial tasks: docs, renames, formatting.
	StrategyLight Strategy = "light"
	// StrategyStandard is the default.
	StrategyStandard Strategy = "standard"
	// StrategyHeavy suits complex tasks: migrations, auth, schema work.
	StrategyHeavy Strategy = "heavy"
)

// lightKeywords indicate tasks cheap enough for the light strategy.
var lightKeywords = []string{
	"docs",
	"readme",
	"documentation",
	"typo",
	"formatting",
	"comment",
	"rename",
}

// heavyKeywords indicate tasks that warrant the heavy strategy.
var heavyKeywords = []string{
	"migration",
	"auth",
	"authentication",
	"security",
	"infra",
	"infrastructure",
	"schema",
	"database",
	"concurrency",
	"refactor",
}

// DefaultLengthThreshold is the description length, in characters, past
// which a task is treated as heavy regardless of keywords.
const DefaultLengthThreshold = 280

// Classifier picks a strategy for a task from keyword and length signals
// in its description.
type Classifier struct {
	lightKeywords   []string
	heavyKeywords   []string
	lengthThreshold int
	// modelFor maps a strategy to the model identifier to request.
	modelFor map[Strategy]string
}

// NewClassifier creates a Classifier with default keywords and length
// threshold. models maps strategies to model identifiers; missing entries
// leave the task's model unset.
func NewClassifier(models map[Strategy]string) *Classifier {
	return &Classifier{
		lightKeywords:   append([]string{}, lightKeywords...),
		heavyKeywords:   append([]string{}, heavyKeywords...),
		lengthThreshold: DefaultLengthThreshold,
		modelFor:        models,
	}
}

// Classify returns the strategy for a task description. Heavy keywords win
// over light ones; long descriptions are heavy by default.
func (c *Classifier) Classify(description string) Strategy {
	lower := strings.ToLower(description)

	for _, kw := range c.heavyKeywords {
		if strings.Contains(lower, kw) {
			return StrategyHeavy
		}
	}

	if len(description) > c.lengthThreshold {
		return StrategyHeavy
	}

	for _, kw := range c.lightKeywords {
		if strings.Contains(lower, kw) {
			return StrategyLight
		}
	}

	return StrategyStandard
}

// ModelFor returns the model identifier configured for the description's
// strategy, or empty when none is configured.
func (c *Classifier) ModelFor(description string) string {
	if c.modelFor == nil {
		return ""
	}
	return c.modelFor[c.Classify(description)]
}
