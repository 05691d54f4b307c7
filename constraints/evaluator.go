package constraints

import (
	"fmt"
	"time"

	"github.com/callwise/arena/results"
)

// Evaluator watches a conversation against a set of constraints. CheckTurn
// runs after every exchange; Finalize runs once at termination. A constraint
// produces at most one violation no matter how often its condition holds.
type Evaluator struct {
	constraints []Constraint
	matchers    MatcherRegistry

	flagged    map[string]bool
	firstSeen  map[string]int // event name -> turn it first matched
	violations []results.ConstraintViolation
}

// NewEvaluator builds an evaluator over the declared constraints. Every
// referenced event must resolve in the registry; unresolvable declarations
// are configuration errors surfaced before the first turn.
func NewEvaluator(cs []Constraint, matchers MatcherRegistry) (*Evaluator, error) {
	if matchers == nil {
		matchers = DefaultMatchers()
	}
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		for _, ev := range []string{c.Event, c.First, c.Second} {
			if ev == "" {
				continue
			}
			if _, ok := matchers[ev]; !ok {
				return nil, fmt.Errorf("constraint %q: event %q is not registered", c.ID, ev)
			}
		}
	}
	return &Evaluator{
		constraints: append([]Constraint(nil), cs...),
		matchers:    matchers,
		flagged:     map[string]bool{},
		firstSeen:   map[string]int{},
	}, nil
}

// CheckTurn records event occurrences and flags any constraint whose
// violating condition now holds.
func (e *Evaluator) CheckTurn(ev TurnEvent) {
	for name, m := range e.matchers {
		if _, seen := e.firstSeen[name]; seen {
			continue
		}
		if m(ev) {
			e.firstSeen[name] = ev.Turn
		}
	}

	for _, c := range e.constraints {
		if e.flagged[c.ID] {
			continue
		}
		switch c.Type {
		case MustNotHappen:
			if turn, ok := e.firstSeen[c.Event]; ok {
				e.flag(c, turn, fmt.Sprintf("forbidden event %q occurred", c.Event))
			}
		case Before:
			// Violated the moment the second event lands without the first.
			secondTurn, secondSeen := e.firstSeen[c.Second]
			firstTurn, firstSeen := e.firstSeen[c.First]
			if secondSeen && (!firstSeen || firstTurn >= secondTurn) {
				e.flag(c, secondTurn, fmt.Sprintf("%q did not occur before %q", c.First, c.Second))
			}
		case After:
			firstTurn, firstSeen := e.firstSeen[c.First]
			secondTurn, secondSeen := e.firstSeen[c.Second]
			if firstSeen && (!secondSeen || secondTurn >= firstTurn) {
				e.flag(c, firstTurn, fmt.Sprintf("%q occurred before %q", c.First, c.Second))
			}
		}
	}
}

// Finalize flags the budget constraints and any pending must_happen once the
// conversation has terminated.
func (e *Evaluator) Finalize(totalTurns int, elapsed time.Duration) []results.ConstraintViolation {
	for _, c := range e.constraints {
		if e.flagged[c.ID] {
			continue
		}
		switch c.Type {
		case MustHappen:
			if _, ok := e.firstSeen[c.Event]; !ok {
				e.flag(c, totalTurns, fmt.Sprintf("required event %q never occurred", c.Event))
			}
		case MaxTurns:
			if totalTurns > c.MaxTurns {
				e.flag(c, totalTurns, fmt.Sprintf("conversation ran %d turns (limit %d)", totalTurns, c.MaxTurns))
			}
		case MaxTime:
			if elapsed > c.MaxTime {
				e.flag(c, totalTurns, fmt.Sprintf("conversation ran %s (limit %s)", elapsed.Round(time.Millisecond), c.MaxTime))
			}
		}
	}
	return e.Violations()
}

// Violations returns the violations flagged so far.
func (e *Evaluator) Violations() []results.ConstraintViolation {
	return append([]results.ConstraintViolation(nil), e.violations...)
}

func (e *Evaluator) flag(c Constraint, turn int, desc string) {
	e.flagged[c.ID] = true
	if c.Description != "" {
		desc = c.Description + ": " + desc
	}
	e.violations = append(e.violations, results.ConstraintViolation{
		ConstraintID: c.ID,
		Type:         string(c.Type),
		Severity:     c.severity(),
		Turn:         turn,
		Description:  desc,
	})
}

// TurnBudget returns the tightest declared max_turns budget, or zero when no
// constraint bounds the conversation length.
func (e *Evaluator) TurnBudget() int {
	budget := 0
	for _, c := range e.constraints {
		if c.Type == MaxTurns && c.MaxTurns > 0 && (budget == 0 || c.MaxTurns < budget) {
			budget = c.MaxTurns
		}
	}
	return budget
}

// TimeBudget returns the tightest declared max_time budget, or zero when no
// constraint bounds the conversation's wall-clock time.
func (e *Evaluator) TimeBudget() time.Duration {
	var budget time.Duration
	for _, c := range e.constraints {
		if c.Type == MaxTime && c.MaxTime > 0 && (budget == 0 || c.MaxTime < budget) {
			budget = c.MaxTime
		}
	}
	return budget
}

// HasFatal reports whether any flagged violation fails the test.
func (e *Evaluator) HasFatal() bool {
	for _, v := range e.violations {
		if v.Severity.Fatal() {
			return true
		}
	}
	return false
}
