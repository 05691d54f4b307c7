// Package results defines the immutable records a finished test produces:
// the transcript, per-goal outcomes, constraint violations, issues, and the
// aggregate run summary. Downstream tooling consumes these shapes, so they
// are append-only: fields may be added, never repurposed.
package results

import (
	"sort"
	"time"
)

// Status is the terminal state of one test case. Exactly one result with one
// of these statuses exists per scheduled test case.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// Severity grades issues and constraint violations.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Fatal reports whether a violation of this severity fails the test.
func (s Severity) Fatal() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Turn is one utterance in the transcript.
type Turn struct {
	Role           string    `json:"role"` // "user" or "agent"
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int64     `json:"response_time_ms,omitempty"`
	StepID         string    `json:"step_id,omitempty"`
}

// Transcript roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// GoalResult is the per-goal outcome in a finished test.
type GoalResult struct {
	GoalID          string   `json:"goal_id"`
	Passed          bool     `json:"passed"`
	Required        bool     `json:"required"`
	Message         string   `json:"message,omitempty"`
	RequiredFields  []string `json:"required_fields,omitempty"`
	CollectedFields []string `json:"collected_fields,omitempty"`
	MissingFields   []string `json:"missing_fields,omitempty"`
}

// ConstraintViolation records one violated constraint. A constraint is
// flagged at most once per test, referencing the turn where the condition
// first held.
type ConstraintViolation struct {
	ConstraintID string   `json:"constraint_id"`
	Type         string   `json:"type"`
	Severity     Severity `json:"severity"`
	Turn         int      `json:"turn"`
	Description  string   `json:"description,omitempty"`
}

// IssueType labels a non-fatal observation raised during tracking.
type IssueType string

const (
	IssueStuck         IssueType = "stuck"
	IssueRepeating     IssueType = "repeating"
	IssueOffTopic      IssueType = "off_topic"
	IssueUnknownIntent IssueType = "unknown_intent"
	IssueTimeout       IssueType = "timeout"
	IssueError         IssueType = "error"
)

// Issue is one observation raised during progress tracking.
type Issue struct {
	Type     IssueType `json:"type"`
	Turn     int       `json:"turn"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message,omitempty"`
}

// TestResult is the frozen outcome of one test case. It is created empty at
// test start, appended to every turn, and persisted exactly once at
// termination; nothing mutates it afterwards.
type TestResult struct {
	TestID         string                `json:"test_id"`
	SessionID      string                `json:"session_id,omitempty"`
	PersonaName    string                `json:"persona_name,omitempty"`
	ResolutionSeed int64                 `json:"resolution_seed,omitempty"`
	Status         Status                `json:"status"`
	Passed         bool                  `json:"passed"`
	GoalResults    []GoalResult          `json:"goal_results"`
	Violations     []ConstraintViolation `json:"constraint_violations"`
	Issues         []Issue               `json:"issues"`
	Transcript     []Turn                `json:"transcript"`
	TurnCount      int                   `json:"turn_count"`
	StartTime      time.Time             `json:"start_time"`
	EndTime        time.Time             `json:"end_time"`
	Duration       time.Duration         `json:"duration"`
	Error          string                `json:"error,omitempty"`
}

// Summary aggregates one run's results.
type Summary struct {
	RunID         string        `json:"run_id"`
	TotalTests    int           `json:"total_tests"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Errors        int           `json:"errors"`
	Cancelled     int           `json:"cancelled"`
	Skipped       int           `json:"skipped"`
	TotalDuration time.Duration `json:"total_duration"`
	TotalTurns    int           `json:"total_turns"`
	Timestamp     time.Time     `json:"timestamp"`
	ConfigFile    string        `json:"config_file,omitempty"`
	Scenarios     []string      `json:"scenarios,omitempty"`
	Personas      []string      `json:"personas,omitempty"`
}

// Summarize builds a Summary over a run's results.
func Summarize(runID, configFile string, rs []TestResult) *Summary {
	s := &Summary{
		RunID:      runID,
		TotalTests: len(rs),
		Timestamp:  time.Now(),
		ConfigFile: configFile,
	}

	scenarios := map[string]struct{}{}
	personas := map[string]struct{}{}
	for i := range rs {
		r := &rs[i]
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusError:
			s.Errors++
		case StatusCancelled:
			s.Cancelled++
		case StatusSkipped:
			s.Skipped++
		}
		s.TotalDuration += r.Duration
		s.TotalTurns += r.TurnCount
		if r.TestID != "" {
			scenarios[r.TestID] = struct{}{}
		}
		if r.PersonaName != "" {
			personas[r.PersonaName] = struct{}{}
		}
	}

	s.Scenarios = sortedSet(scenarios)
	s.Personas = sortedSet(personas)
	return s
}

func sortedSet(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
