package intent

import (
	"context"
	"fmt"
	"strings"
)

// unknownConfidence is reported when no pattern matches.
const unknownConfidence = 0.2

// EvalResult is the semantic tier's judgment of one utterance against a
// plain-language criteria string.
type EvalResult struct {
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// SemanticEvaluator is the optional LLM-backed judgment collaborator. When
// absent or failing, the engine falls back fully to pattern classification.
type SemanticEvaluator interface {
	Evaluate(ctx context.Context, utterance, criteria string) (EvalResult, error)
}

// Classifier maps one agent utterance to a best-guess intent. Pattern
// vocabulary is injected at construction so runners with different
// vocabularies can coexist; there is no package-level registry.
type Classifier struct {
	patterns []Pattern
	semantic SemanticEvaluator
	// semanticFloor is the deterministic confidence below which the
	// semantic tier (when present) is consulted.
	semanticFloor float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSemanticEvaluator attaches the optional semantic tier, consulted only
// when the deterministic tier's confidence falls below floor.
func WithSemanticEvaluator(eval SemanticEvaluator, floor float64) Option {
	return func(c *Classifier) {
		c.semantic = eval
		c.semanticFloor = floor
	}
}

// NewClassifier builds a classifier over an ordered pattern list.
// Patterns are evaluated in order; the first match wins.
func NewClassifier(patterns []Pattern, opts ...Option) *Classifier {
	c := &Classifier{
		patterns:      patterns,
		semanticFloor: 0.5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultClassifier builds a classifier with the stock vocabulary.
func NewDefaultClassifier(opts ...Option) *Classifier {
	return NewClassifier(DefaultPatterns(), opts...)
}

// Classify maps an utterance to an intent. It is total: it never returns an
// error, an unrecognized utterance yields Unknown with low confidence.
func (c *Classifier) Classify(utterance string) Classification {
	lower := strings.ToLower(strings.TrimSpace(utterance))

	result := Classification{
		Primary:    Unknown,
		Confidence: unknownConfidence,
		IsQuestion: isQuestion(lower),
		Extracted:  extractInfo(lower),
		Reasoning:  "no pattern matched",
	}
	if lower == "" {
		result.Reasoning = "empty utterance"
		return result
	}

	matched := false
	for _, p := range c.patterns {
		if !p.Match(lower) {
			continue
		}
		if !matched {
			result.Primary = p.Intent
			result.Confidence = p.Confidence
			result.Reasoning = fmt.Sprintf("pattern match for %s", p.Intent)
			matched = true
			continue
		}
		if p.Intent != result.Primary && !containsIntent(result.Secondary, p.Intent) {
			result.Secondary = append(result.Secondary, p.Intent)
		}
	}

	result.RequiresResponse = requiresResponse(result)
	return result
}

// ClassifyContext runs the deterministic tier and, when its confidence is
// below the semantic floor and an evaluator is configured, asks the semantic
// tier to pick an intent. Any semantic failure falls back silently to the
// deterministic result.
func (c *Classifier) ClassifyContext(ctx context.Context, utterance string) Classification {
	result := c.Classify(utterance)
	if c.semantic == nil || result.Confidence >= c.semanticFloor {
		return result
	}

	for _, p := range c.patterns {
		criteria, ok := Criteria[p.Intent]
		if !ok {
			continue
		}
		eval, err := c.semantic.Evaluate(ctx, utterance, criteria)
		if err != nil {
			// Semantic tier is best-effort only.
			return result
		}
		if eval.Passed && eval.Confidence > result.Confidence {
			result.Primary = p.Intent
			result.Confidence = eval.Confidence
			result.Reasoning = "semantic: " + eval.Reasoning
			result.RequiresResponse = requiresResponse(result)
			return result
		}
	}
	return result
}

func isQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, prefix := range []string{"what ", "when ", "which ", "who ", "how ", "may i", "can you", "could you", "would you", "do you", "are you", "is there"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// requiresResponse reports whether the caller is expected to reply.
// Terminal intents close the exchange; everything the agent asks needs an
// answer.
func requiresResponse(c Classification) bool {
	switch c.Primary {
	case ConfirmingBooking, InitiatingTransfer, SayingGoodbye:
		return false
	case Unknown:
		return c.IsQuestion
	default:
		if _, asksField := c.Primary.TargetField(); asksField {
			return true
		}
		return c.IsQuestion || c.Primary == AskingClarification || c.Primary == OfferingSlot
	}
}

func containsIntent(list []Intent, i Intent) bool {
	for _, x := range list {
		if x == i {
			return true
		}
	}
	return false
}
