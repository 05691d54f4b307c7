package progress

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/logger"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/results"
)

// Config holds the issue-detection thresholds. Every knob here used to be a
// constant; scenarios tune them per deployment, so they are configuration.
type Config struct {
	// StuckTurns is how many consecutive turns without progress (no new
	// field, no goal completion) raise a stuck issue.
	StuckTurns int `json:"stuck_turns" yaml:"stuck_turns"`

	// RepeatWindow and RepeatLimit flag repetition: the same agent intent
	// appearing more than RepeatLimit times inside the window, with no new
	// information collected, raises a repeating issue.
	RepeatWindow int `json:"repeat_window" yaml:"repeat_window"`
	RepeatLimit  int `json:"repeat_limit" yaml:"repeat_limit"`

	// OffTopicTurns is how many consecutive unrecognized turns raise an
	// off-topic issue.
	OffTopicTurns int `json:"off_topic_turns" yaml:"off_topic_turns"`

	// UnknownConfidenceFloor flags unknown-intent turns below this
	// classification confidence.
	UnknownConfidenceFloor float64 `json:"unknown_confidence_floor" yaml:"unknown_confidence_floor"`

	// TurnTimeout is the per-turn round-trip budget; slower turns raise a
	// timeout issue.
	TurnTimeout time.Duration `json:"turn_timeout" yaml:"turn_timeout"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		StuckTurns:             4,
		RepeatWindow:           5,
		RepeatLimit:            2,
		OffTopicTurns:          3,
		UnknownConfidenceFloor: 0.5,
		TurnTimeout:            30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StuckTurns <= 0 {
		c.StuckTurns = d.StuckTurns
	}
	if c.RepeatWindow <= 0 {
		c.RepeatWindow = d.RepeatWindow
	}
	if c.RepeatLimit <= 0 {
		c.RepeatLimit = d.RepeatLimit
	}
	if c.OffTopicTurns <= 0 {
		c.OffTopicTurns = d.OffTopicTurns
	}
	if c.UnknownConfidenceFloor <= 0 {
		c.UnknownConfidenceFloor = d.UnknownConfidenceFloor
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = d.TurnTimeout
	}
	return c
}

// Observation is one completed exchange: the user utterance that was sent,
// the agent reply, and its classification.
type Observation struct {
	Classification intent.Classification
	AgentUtterance string
	UserUtterance  string
	RoundTrip      time.Duration
}

// Tracker folds observations into conversation state, evaluates goals, and
// detects conversational issues. It never terminates the test itself.
type Tracker struct {
	cfg        Config
	goals      []Goal
	predicates PredicateRegistry
	state      *State
	sessionID  string

	awaiting        persona.Field // field the agent asked for last turn
	progressIdle    int           // turns since last progress
	offTopicStreak  int
	stuckFlagged    bool
	repeatFlagged   bool
	offTopicFlagged bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPredicates supplies the registry custom goals resolve against.
func WithPredicates(r PredicateRegistry) TrackerOption {
	return func(t *Tracker) {
		t.predicates = r
	}
}

// WithSessionID tags the tracker's log lines with the session.
func WithSessionID(id string) TrackerOption {
	return func(t *Tracker) {
		t.sessionID = id
	}
}

// NewTracker creates a tracker for the declared goals. The pending field
// list is the union of the data-collection goals' fields in declaration
// order.
func NewTracker(goals []Goal, cfg Config, opts ...TrackerOption) (*Tracker, error) {
	for _, g := range goals {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	cfg = cfg.withDefaults()

	var pending []persona.Field
	seen := map[persona.Field]bool{}
	for _, g := range goals {
		if g.Type != GoalDataCollection {
			continue
		}
		for _, f := range g.Fields {
			if !seen[f] {
				seen[f] = true
				pending = append(pending, f)
			}
		}
	}

	ringSize := cfg.RepeatWindow
	if ringSize < 8 {
		ringSize = 8
	}

	t := &Tracker{
		cfg:        cfg,
		goals:      append([]Goal(nil), goals...),
		predicates: PredicateRegistry{},
		state:      NewState(pending, ringSize),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, g := range goals {
		if g.Type == GoalCustom {
			if _, ok := t.predicates.Lookup(g.Predicate); !ok {
				return nil, fmt.Errorf("goal %q: predicate %q is not registered", g.ID, g.Predicate)
			}
		}
	}
	return t, nil
}

// State exposes the tracked conversation state.
func (t *Tracker) State() *State {
	return t.state
}

var refusalRe = regexp.MustCompile(`(?i)\b(don'?t have|do not have|not sure|can'?t remember|no idea)\b`)

// Observe folds one exchange into the state: collection, confirmation, goal
// evaluation, issue detection, flow update. Safe to call until the engine
// freezes the result; not safe for concurrent use.
func (t *Tracker) Observe(obs Observation) {
	s := t.state
	s.TurnCount++
	s.LastActivity = time.Now()

	progressed := t.applyCollection(obs)
	t.applyConfirmation(obs)
	progressed = t.evaluateGoals(obs) || progressed

	s.pushIntent(obs.Classification.Primary)

	// The field the agent just asked for is answered by the next user turn.
	if f, ok := obs.Classification.Primary.TargetField(); ok {
		t.awaiting = f
	} else {
		t.awaiting = ""
	}

	t.detectIssues(obs, progressed)
	t.updateFlow(obs.Classification.Primary)

	logger.Debug("turn observed",
		"session", t.sessionID,
		"turn", s.TurnCount,
		"intent", string(obs.Classification.Primary),
		"collected", len(s.collected),
		"pending", len(s.pending))
}

// applyCollection records the field answered by the user's utterance, plus
// any values the agent explicitly echoed back.
func (t *Tracker) applyCollection(obs Observation) bool {
	s := t.state
	progressed := false

	if t.awaiting != "" && strings.TrimSpace(obs.UserUtterance) != "" {
		if refusalRe.MatchString(obs.UserUtterance) {
			if _, ok := s.collected[t.awaiting]; !ok {
				s.unreachable[t.awaiting] = true
			}
		} else {
			if _, ok := s.collected[t.awaiting]; !ok {
				progressed = true
			}
			s.collect(t.awaiting, CollectedValue{
				Value:     strings.TrimSpace(obs.UserUtterance),
				Turn:      s.TurnCount,
				Utterance: obs.UserUtterance,
			})
		}
	}

	// Values extracted from the agent reply count as collected too; the
	// agent demonstrably holds them.
	for f, v := range obs.Classification.Extracted {
		if _, ok := s.collected[f]; !ok {
			progressed = true
			s.collect(f, CollectedValue{
				Value:     v,
				Turn:      s.TurnCount,
				Confirmed: true,
				Utterance: obs.AgentUtterance,
			})
		}
	}
	return progressed
}

// applyConfirmation marks fields confirmed when the agent's reply repeats
// the collected value.
func (t *Tracker) applyConfirmation(obs Observation) {
	s := t.state
	lower := strings.ToLower(obs.AgentUtterance)
	for f, v := range s.collected {
		if v.Confirmed || v.Value == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(v.Value)) {
			s.confirm(f)
		}
	}
}

func (t *Tracker) evaluateGoals(obs Observation) bool {
	s := t.state
	progressed := false

	for _, g := range t.goals {
		if _, done := s.completedGoals[g.ID]; done {
			continue
		}
		if _, failed := s.failedGoals[g.ID]; failed {
			continue
		}

		switch g.Type {
		case GoalDataCollection:
			missing := 0
			blocked := false
			for _, f := range g.Fields {
				if _, ok := s.collected[f]; ok {
					continue
				}
				missing++
				if s.unreachable[f] {
					blocked = true
				}
			}
			if missing == 0 {
				s.completedGoals[g.ID] = s.TurnCount
				progressed = true
			} else if blocked {
				s.failedGoals[g.ID] = "persona cannot provide a required field"
			}
		case GoalBookingConfirmed:
			if hasIntent(obs.Classification, intent.ConfirmingBooking) {
				s.completedGoals[g.ID] = s.TurnCount
				progressed = true
			}
		case GoalTransferInitiated:
			if hasIntent(obs.Classification, intent.InitiatingTransfer) {
				s.completedGoals[g.ID] = s.TurnCount
				progressed = true
			}
		case GoalConversationEnded:
			if hasIntent(obs.Classification, intent.SayingGoodbye) {
				s.completedGoals[g.ID] = s.TurnCount
				progressed = true
			}
		case GoalErrorHandled:
			if hasIntent(obs.Classification, intent.ApologizingError) {
				s.completedGoals[g.ID] = s.TurnCount
				progressed = true
			}
		case GoalCustom:
			p, _ := t.predicates.Lookup(g.Predicate)
			if p(GoalContext{State: s, Classification: obs.Classification, UserUtterance: obs.UserUtterance}) {
				s.completedGoals[g.ID] = s.TurnCount
				progressed = true
			}
		}
	}
	return progressed
}

func hasIntent(c intent.Classification, want intent.Intent) bool {
	if c.Primary == want {
		return true
	}
	for _, s := range c.Secondary {
		if s == want {
			return true
		}
	}
	return false
}

func (t *Tracker) detectIssues(obs Observation, progressed bool) {
	s := t.state
	c := obs.Classification

	if c.Primary == intent.Unknown && c.Confidence < t.cfg.UnknownConfidenceFloor {
		s.addIssue(results.IssueUnknownIntent, results.SeverityLow,
			fmt.Sprintf("unrecognized agent utterance (confidence %.2f)", c.Confidence))
	}

	if !progressed {
		t.progressIdle++
	} else {
		t.progressIdle = 0
		t.stuckFlagged = false
		t.repeatFlagged = false
	}
	if t.progressIdle >= t.cfg.StuckTurns && !t.stuckFlagged {
		t.stuckFlagged = true
		s.addIssue(results.IssueStuck, results.SeverityMedium,
			fmt.Sprintf("no progress for %d turns", t.progressIdle))
	}

	if !progressed {
		count := 0
		for _, recent := range s.recentIntents {
			if recent == c.Primary {
				count++
			}
		}
		// The ring already includes the current turn.
		if count >= t.cfg.RepeatLimit+1 && !t.repeatFlagged {
			t.repeatFlagged = true
			s.addIssue(results.IssueRepeating, results.SeverityMedium,
				fmt.Sprintf("agent repeated %q %d times without new information", c.Primary, count))
		}
	}

	if c.Primary == intent.Unknown {
		t.offTopicStreak++
	} else {
		t.offTopicStreak = 0
		t.offTopicFlagged = false
	}
	if t.offTopicStreak >= t.cfg.OffTopicTurns && !t.offTopicFlagged {
		t.offTopicFlagged = true
		s.addIssue(results.IssueOffTopic, results.SeverityMedium,
			fmt.Sprintf("%d consecutive unrecognized turns", t.offTopicStreak))
	}

	if obs.RoundTrip > t.cfg.TurnTimeout {
		s.addIssue(results.IssueTimeout, results.SeverityMedium,
			fmt.Sprintf("agent reply took %s (budget %s)", obs.RoundTrip, t.cfg.TurnTimeout))
	}

	if c.Primary == intent.ApologizingError && !t.expectsError() {
		s.addIssue(results.IssueError, results.SeverityMedium, "agent reported an error")
	}
}

func (t *Tracker) expectsError() bool {
	for _, g := range t.goals {
		if g.Type == GoalErrorHandled {
			return true
		}
	}
	return false
}

func (t *Tracker) updateFlow(primary intent.Intent) {
	s := t.state
	_, asksField := primary.TargetField()
	switch {
	case primary == intent.Greeting:
		s.Flow = FlowGreeting
	case asksField:
		s.Flow = FlowCollecting
	case primary == intent.OfferingSlot:
		s.Flow = FlowOffering
	case primary == intent.ConfirmingBooking:
		s.Flow = FlowConfirming
	case primary == intent.InitiatingTransfer:
		s.Flow = FlowTransferring
	case primary == intent.SayingGoodbye:
		s.Flow = FlowClosing
	case primary == intent.Unknown:
		s.Flow = FlowUnknown
	}
}

// RequiredGoalsComplete reports whether every required goal has completed.
func (t *Tracker) RequiredGoalsComplete() bool {
	for _, g := range t.goals {
		if !g.Required {
			continue
		}
		if _, ok := t.state.completedGoals[g.ID]; !ok {
			return false
		}
	}
	return true
}

// RequiredGoalFailed reports whether any required goal can no longer pass.
func (t *Tracker) RequiredGoalFailed() bool {
	for _, g := range t.goals {
		if !g.Required {
			continue
		}
		if _, failed := t.state.failedGoals[g.ID]; failed {
			return true
		}
	}
	return false
}

// GoalResults builds the per-goal outcomes for the frozen test result.
func (t *Tracker) GoalResults() []results.GoalResult {
	s := t.state
	out := make([]results.GoalResult, 0, len(t.goals))
	for _, g := range t.goals {
		gr := results.GoalResult{
			GoalID:   g.ID,
			Required: g.Required,
		}
		if turn, ok := s.completedGoals[g.ID]; ok {
			gr.Passed = true
			gr.Message = fmt.Sprintf("completed at turn %d", turn)
		} else if msg, failed := s.failedGoals[g.ID]; failed {
			gr.Message = msg
		} else {
			gr.Message = "not completed"
		}

		if g.Type == GoalDataCollection {
			for _, f := range g.Fields {
				gr.RequiredFields = append(gr.RequiredFields, string(f))
				if _, ok := s.collected[f]; ok {
					gr.CollectedFields = append(gr.CollectedFields, string(f))
				} else {
					gr.MissingFields = append(gr.MissingFields, string(f))
				}
			}
			if !gr.Passed {
				gr.Message = fmt.Sprintf("%d of %d fields collected",
					len(gr.CollectedFields), len(gr.RequiredFields))
			}
		}
		out = append(out, gr)
	}
	return out
}
