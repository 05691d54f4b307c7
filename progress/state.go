package progress

import (
	"sort"
	"time"

	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/results"
)

// FlowState labels where the conversation currently sits.
type FlowState string

const (
	FlowGreeting     FlowState = "greeting"
	FlowCollecting   FlowState = "collecting"
	FlowOffering     FlowState = "offering"
	FlowConfirming   FlowState = "confirming"
	FlowTransferring FlowState = "transferring"
	FlowClosing      FlowState = "closing"
	FlowUnknown      FlowState = "unknown"
)

// CollectedValue records one field the agent has gathered.
type CollectedValue struct {
	Value     string `json:"value"`
	Turn      int    `json:"turn"`
	Confirmed bool   `json:"confirmed"`
	Utterance string `json:"utterance,omitempty"`
}

// State is the evolving picture of one conversation. Collected fields are
// never removed; a later mention can only confirm them. Pending and
// collected are always disjoint.
type State struct {
	collected      map[persona.Field]CollectedValue
	unreachable    map[persona.Field]bool
	pending        []persona.Field
	completedGoals map[string]int // goal ID -> turn completed
	failedGoals    map[string]string

	Flow          FlowState
	TurnCount     int
	LastIntent    intent.Intent
	recentIntents []intent.Intent
	ringSize      int

	StartedAt    time.Time
	LastActivity time.Time

	issues []results.Issue
}

// NewState creates an empty conversation state whose pending list starts as
// the given field order.
func NewState(pendingFields []persona.Field, ringSize int) *State {
	if ringSize < 1 {
		ringSize = 8
	}
	now := time.Now()
	return &State{
		collected:      map[persona.Field]CollectedValue{},
		unreachable:    map[persona.Field]bool{},
		pending:        append([]persona.Field(nil), pendingFields...),
		completedGoals: map[string]int{},
		failedGoals:    map[string]string{},
		Flow:           FlowGreeting,
		ringSize:       ringSize,
		StartedAt:      now,
		LastActivity:   now,
	}
}

// Collected returns the recorded value for a field.
func (s *State) Collected(f persona.Field) (CollectedValue, bool) {
	v, ok := s.collected[f]
	return v, ok
}

// CollectedFields returns the collected field names in a stable order.
func (s *State) CollectedFields() []persona.Field {
	out := make([]persona.Field, 0, len(s.collected))
	for _, f := range fieldOrder {
		if _, ok := s.collected[f]; ok {
			out = append(out, f)
		}
	}
	if len(out) < len(s.collected) {
		var extra []string
		known := make(map[persona.Field]bool, len(out))
		for _, f := range out {
			known[f] = true
		}
		for f := range s.collected {
			if !known[f] {
				extra = append(extra, string(f))
			}
		}
		sort.Strings(extra)
		for _, f := range extra {
			out = append(out, persona.Field(f))
		}
	}
	return out
}

// Pending returns the fields still awaiting collection.
func (s *State) Pending() []persona.Field {
	return append([]persona.Field(nil), s.pending...)
}

// Unreachable reports whether the persona declined to provide the field.
func (s *State) Unreachable(f persona.Field) bool {
	return s.unreachable[f]
}

// GoalCompleted reports whether the goal has completed, and at which turn.
func (s *State) GoalCompleted(id string) (int, bool) {
	turn, ok := s.completedGoals[id]
	return turn, ok
}

// GoalFailed reports whether the goal has been marked unreachable.
func (s *State) GoalFailed(id string) (string, bool) {
	msg, ok := s.failedGoals[id]
	return msg, ok
}

// RecentIntents returns the bounded window of recent primary intents,
// oldest first.
func (s *State) RecentIntents() []intent.Intent {
	return append([]intent.Intent(nil), s.recentIntents...)
}

// Issues returns every issue raised so far, in detection order.
func (s *State) Issues() []results.Issue {
	return append([]results.Issue(nil), s.issues...)
}

func (s *State) collect(f persona.Field, v CollectedValue) {
	if existing, ok := s.collected[f]; ok {
		// Re-confirmation only; the original value stays.
		if !existing.Confirmed && v.Confirmed {
			existing.Confirmed = true
			s.collected[f] = existing
		}
		return
	}
	s.collected[f] = v
	s.removePending(f)
}

func (s *State) confirm(f persona.Field) {
	if v, ok := s.collected[f]; ok && !v.Confirmed {
		v.Confirmed = true
		s.collected[f] = v
	}
}

func (s *State) removePending(f persona.Field) {
	for i, p := range s.pending {
		if p == f {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *State) pushIntent(i intent.Intent) {
	s.recentIntents = append(s.recentIntents, i)
	if len(s.recentIntents) > s.ringSize {
		s.recentIntents = s.recentIntents[1:]
	}
	s.LastIntent = i
}

func (s *State) addIssue(t results.IssueType, sev results.Severity, msg string) {
	s.issues = append(s.issues, results.Issue{
		Type:     t,
		Turn:     s.TurnCount,
		Severity: sev,
		Message:  msg,
	})
}

// fieldOrder fixes a stable presentation order for collected-field listings.
var fieldOrder = []persona.Field{
	persona.FieldParentName,
	persona.FieldParentPhone,
	persona.FieldParentEmail,
	persona.FieldParentDOB,
	persona.FieldChildName,
	persona.FieldChildDOB,
	persona.FieldInsuranceProvider,
	persona.FieldInsuranceMemberID,
	persona.FieldLocationPref,
	persona.FieldTimePref,
}
