// Package progress tracks what a conversation has accomplished: which
// persona fields the agent has collected, which goals are complete, and
// which conversational issues (stuck loops, repetition, timeouts) have
// surfaced. The tracker only observes; terminating the test is the
// engine's call.
package progress

import (
	"fmt"

	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/persona"
)

// GoalType selects the built-in completion rule for a goal.
type GoalType string

const (
	// GoalDataCollection completes when every listed field is collected.
	GoalDataCollection GoalType = "data_collection"
	// GoalBookingConfirmed completes when the agent confirms a booking.
	GoalBookingConfirmed GoalType = "booking_confirmed"
	// GoalTransferInitiated completes when the agent hands off to a human.
	GoalTransferInitiated GoalType = "transfer_initiated"
	// GoalConversationEnded completes when the agent says goodbye.
	GoalConversationEnded GoalType = "conversation_ended"
	// GoalErrorHandled completes when the agent surfaces an error gracefully.
	GoalErrorHandled GoalType = "error_handled"
	// GoalCustom completes when the named predicate returns true.
	GoalCustom GoalType = "custom"
)

// Goal declares one outcome the conversation should reach.
type Goal struct {
	ID          string          `json:"id" yaml:"id"`
	Type        GoalType        `json:"type" yaml:"type"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool            `json:"required" yaml:"required"`
	Priority    int             `json:"priority,omitempty" yaml:"priority,omitempty"`
	Fields      []persona.Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	Predicate   string          `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// Validate checks the goal declaration is internally consistent.
func (g Goal) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("goal has empty id")
	}
	switch g.Type {
	case GoalDataCollection:
		if len(g.Fields) == 0 {
			return fmt.Errorf("goal %q: data_collection requires at least one field", g.ID)
		}
	case GoalBookingConfirmed, GoalTransferInitiated, GoalConversationEnded, GoalErrorHandled:
	case GoalCustom:
		if g.Predicate == "" {
			return fmt.Errorf("goal %q: custom goal requires a predicate name", g.ID)
		}
	default:
		return fmt.Errorf("goal %q: unknown goal type %q", g.ID, g.Type)
	}
	return nil
}

// GoalContext is the view a custom predicate evaluates against.
type GoalContext struct {
	State          *State
	Classification intent.Classification
	UserUtterance  string
}

// Predicate is a named completion rule for custom goals.
type Predicate func(GoalContext) bool

// PredicateRegistry maps predicate names to implementations. Registries are
// populated at startup and read-only afterwards.
type PredicateRegistry map[string]Predicate

// Register adds a named predicate, replacing any previous binding.
func (r PredicateRegistry) Register(name string, p Predicate) {
	r[name] = p
}

// Lookup returns the predicate bound to name.
func (r PredicateRegistry) Lookup(name string) (Predicate, bool) {
	p, ok := r[name]
	return p, ok
}
