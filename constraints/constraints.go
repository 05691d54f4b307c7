// Package constraints evaluates declarative conversation constraints:
// things that must or must not happen, ordering requirements, and turn or
// time budgets. Each constraint is flagged at most once per conversation.
package constraints

import (
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/results"
)

// Type selects the constraint semantics.
type Type string

const (
	// MustHappen requires the event to occur before the conversation ends.
	MustHappen Type = "must_happen"
	// MustNotHappen violates the moment the event occurs.
	MustNotHappen Type = "must_not_happen"
	// MaxTurns bounds the total turn count.
	MaxTurns Type = "max_turns"
	// MaxTime bounds the total wall-clock duration.
	MaxTime Type = "max_time"
	// Before requires the first event to occur before the second.
	Before Type = "before"
	// After requires the first event to occur after the second.
	After Type = "after"
)

// Constraint declares one rule the conversation must honor.
type Constraint struct {
	ID          string           `json:"id" yaml:"id"`
	Type        Type             `json:"type" yaml:"type"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Severity    results.Severity `json:"severity,omitempty" yaml:"severity,omitempty"`

	// Event names resolve through the evaluator's matcher registry.
	Event  string `json:"event,omitempty" yaml:"event,omitempty"`
	First  string `json:"first,omitempty" yaml:"first,omitempty"`
	Second string `json:"second,omitempty" yaml:"second,omitempty"`

	MaxTurns int           `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	MaxTime  time.Duration `json:"max_time,omitempty" yaml:"max_time,omitempty"`
}

// constraintDoc mirrors Constraint for YAML with max_time as a duration
// string ("90s", "2m").
type constraintDoc struct {
	ID          string           `yaml:"id"`
	Type        Type             `yaml:"type"`
	Description string           `yaml:"description,omitempty"`
	Severity    results.Severity `yaml:"severity,omitempty"`
	Event       string           `yaml:"event,omitempty"`
	First       string           `yaml:"first,omitempty"`
	Second      string           `yaml:"second,omitempty"`
	MaxTurns    int              `yaml:"max_turns,omitempty"`
	MaxTime     string           `yaml:"max_time,omitempty"`
}

// UnmarshalYAML decodes a constraint, parsing max_time as a duration string.
func (c *Constraint) UnmarshalYAML(value *yaml.Node) error {
	var doc constraintDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	*c = Constraint{
		ID:          doc.ID,
		Type:        doc.Type,
		Description: doc.Description,
		Severity:    doc.Severity,
		Event:       doc.Event,
		First:       doc.First,
		Second:      doc.Second,
		MaxTurns:    doc.MaxTurns,
	}
	if doc.MaxTime != "" {
		d, err := time.ParseDuration(doc.MaxTime)
		if err != nil {
			return fmt.Errorf("constraint %q: invalid max_time %q: %w", doc.ID, doc.MaxTime, err)
		}
		c.MaxTime = d
	}
	return nil
}

// MarshalYAML renders max_time back as a duration string.
func (c Constraint) MarshalYAML() (interface{}, error) {
	doc := constraintDoc{
		ID:          c.ID,
		Type:        c.Type,
		Description: c.Description,
		Severity:    c.Severity,
		Event:       c.Event,
		First:       c.First,
		Second:      c.Second,
		MaxTurns:    c.MaxTurns,
	}
	if c.MaxTime > 0 {
		doc.MaxTime = c.MaxTime.String()
	}
	return doc, nil
}

// Validate checks the declaration names everything its type needs.
func (c Constraint) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("constraint has empty id")
	}
	switch c.Type {
	case MustHappen, MustNotHappen:
		if c.Event == "" {
			return fmt.Errorf("constraint %q: %s requires an event", c.ID, c.Type)
		}
	case Before, After:
		if c.First == "" || c.Second == "" {
			return fmt.Errorf("constraint %q: %s requires first and second events", c.ID, c.Type)
		}
	case MaxTurns:
		if c.MaxTurns <= 0 {
			return fmt.Errorf("constraint %q: max_turns must be positive", c.ID)
		}
	case MaxTime:
		if c.MaxTime <= 0 {
			return fmt.Errorf("constraint %q: max_time must be positive", c.ID)
		}
	default:
		return fmt.Errorf("constraint %q: unknown constraint type %q", c.ID, c.Type)
	}
	return nil
}

func (c Constraint) severity() results.Severity {
	if c.Severity == "" {
		return results.SeverityHigh
	}
	return c.Severity
}

// TurnEvent is what matchers see for each observed turn.
type TurnEvent struct {
	Turn           int
	Classification intent.Classification
	AgentUtterance string
	UserUtterance  string
}

// Matcher decides whether a named event occurred on a turn.
type Matcher func(TurnEvent) bool

// MatcherRegistry maps event names to matchers.
type MatcherRegistry map[string]Matcher

// Register adds a named matcher, replacing any previous binding.
func (r MatcherRegistry) Register(name string, m Matcher) {
	r[name] = m
}

// IntentMatcher matches turns whose primary or secondary intent equals i.
func IntentMatcher(i intent.Intent) Matcher {
	return func(ev TurnEvent) bool {
		if ev.Classification.Primary == i {
			return true
		}
		for _, s := range ev.Classification.Secondary {
			if s == i {
				return true
			}
		}
		return false
	}
}

// ContentMatcher matches turns whose agent utterance matches the pattern.
func ContentMatcher(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid content pattern %q: %w", pattern, err)
	}
	return func(ev TurnEvent) bool {
		return re.MatchString(ev.AgentUtterance)
	}, nil
}

// DefaultMatchers binds the stock event vocabulary to agent intents.
func DefaultMatchers() MatcherRegistry {
	return MatcherRegistry{
		"greeting":            IntentMatcher(intent.Greeting),
		"slot_offered":        IntentMatcher(intent.OfferingSlot),
		"booking_confirmed":   IntentMatcher(intent.ConfirmingBooking),
		"transfer_initiated":  IntentMatcher(intent.InitiatingTransfer),
		"apology":             IntentMatcher(intent.ApologizingError),
		"goodbye":             IntentMatcher(intent.SayingGoodbye),
		"insurance_asked":     IntentMatcher(intent.AskingInsurance),
		"clarification_asked": IntentMatcher(intent.AskingClarification),
	}
}
