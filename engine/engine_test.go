package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwise/arena/config"
	"github.com/callwise/arena/constraints"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
	"github.com/callwise/arena/results"
	"github.com/callwise/arena/statestore"
	"github.com/callwise/arena/target"
)

// happyScript is an agent that collects all four fields, offers a slot, and
// confirms the booking on the seventh exchange.
var happyScript = []string{
	"Hello! How can I help you today?",
	"May I have your name, please?",
	"Thanks! What's the best number to reach you?",
	"And what's your child's name?",
	"What's your child's date of birth?",
	"We have an opening on Tuesday at 3:00 PM. Would that work for you?",
	"You're all set! Emma is booked for Tuesday at 3:00 PM.",
}

// stallScript greets once and then asks for a repeat forever.
var stallScript = []string{
	"Hello! How can I help you today?",
	"Could you repeat that, please?",
}

func bookingTemplate() *persona.Template {
	return &persona.Template{
		Name: "booking-parent",
		Inventory: persona.InventoryTemplate{
			ParentName:  persona.FieldValue{Literal: "Sarah Mitchell"},
			ParentPhone: persona.FieldValue{Literal: "555-123-4567"},
			Children: []persona.ChildTemplate{{
				Name: persona.FieldValue{Literal: "Emma"},
				DOB:  persona.FieldValue{Literal: "2019-03-12"},
			}},
		},
		Traits: persona.Traits{Verbosity: persona.VerbosityNormal},
	}
}

func bookingGoals() []progress.Goal {
	return []progress.Goal{
		{
			ID:       "collect-contact",
			Type:     progress.GoalDataCollection,
			Required: true,
			Fields: []persona.Field{
				persona.FieldParentName,
				persona.FieldParentPhone,
				persona.FieldChildName,
				persona.FieldChildDOB,
			},
		},
		{ID: "booked", Type: progress.GoalBookingConfirmed, Required: true},
	}
}

func happyScenario(name string) config.Scenario {
	return config.Scenario{
		Name:     name,
		Persona:  bookingTemplate(),
		Seed:     42,
		MaxTurns: 20,
		Goals:    bookingGoals(),
		Constraints: []constraints.Constraint{
			{ID: "must-book", Type: constraints.MustHappen, Event: "booking_confirmed"},
			{ID: "greet-first", Type: constraints.Before, First: "greeting", Second: "booking_confirmed"},
			{ID: "turn-budget", Type: constraints.MaxTurns, MaxTurns: 20},
		},
		ScriptedReplies: happyScript,
	}
}

func testConfig(scenarios ...config.Scenario) *config.Config {
	defaults := config.DefaultDefaults()
	defaults.RetryBackoff = config.Duration(time.Millisecond)
	return &config.Config{
		Name:      "engine-test",
		Defaults:  defaults,
		Scenarios: scenarios,
	}
}

func TestEngineHappyPath(t *testing.T) {
	cfg := testConfig(happyScenario("happy-path"))
	eng, err := New(cfg, WithMockMode())
	require.NoError(t, err)

	summary, all, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	r := all[0]
	assert.Equal(t, results.StatusPassed, r.Status)
	assert.True(t, r.Passed)
	assert.Equal(t, 7, r.TurnCount)
	assert.Len(t, r.Transcript, 14)
	assert.Empty(t, r.Violations)
	assert.Equal(t, "booking-parent", r.PersonaName)
	assert.Equal(t, int64(42), r.ResolutionSeed)
	assert.NotEmpty(t, r.SessionID)

	require.Len(t, r.GoalResults, 2)
	for _, g := range r.GoalResults {
		assert.True(t, g.Passed, "goal %s", g.GoalID)
	}

	assert.Equal(t, 1, summary.TotalTests)
	assert.Equal(t, 1, summary.Passed)
	assert.Zero(t, summary.Failed)
}

func TestEngineStallingAgentFailsTurnBudget(t *testing.T) {
	sc := config.Scenario{
		Name:     "stalling-agent",
		Persona:  bookingTemplate(),
		Seed:     7,
		MaxTurns: 4,
		Goals: []progress.Goal{
			{ID: "collect-name", Type: progress.GoalDataCollection, Required: true,
				Fields: []persona.Field{persona.FieldParentName}},
		},
		Constraints: []constraints.Constraint{
			{ID: "turn-budget", Type: constraints.MaxTurns, MaxTurns: 3},
		},
		ScriptedReplies: stallScript,
	}
	eng, err := New(testConfig(sc), WithMockMode())
	require.NoError(t, err)

	summary, all, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	r := all[0]
	assert.Equal(t, results.StatusFailed, r.Status)
	assert.False(t, r.Passed)
	assert.Equal(t, 4, r.TurnCount)

	require.Len(t, r.Violations, 1)
	assert.Equal(t, "turn-budget", r.Violations[0].ConstraintID)
	assert.True(t, r.Violations[0].Severity.Fatal())

	var repeating bool
	for _, is := range r.Issues {
		if is.Type == results.IssueRepeating {
			repeating = true
		}
	}
	assert.True(t, repeating, "expected a repeating issue, got %v", r.Issues)

	assert.Equal(t, 1, summary.Failed)
}

// routingAgent hands each new session the next agent in line. With
// concurrency pinned to one, scenario order decides the assignment.
type routingAgent struct {
	mu       sync.Mutex
	next     int
	assigned map[string]target.Agent
	agents   []target.Agent
}

func newRoutingAgent(agents ...target.Agent) *routingAgent {
	return &routingAgent{assigned: map[string]target.Agent{}, agents: agents}
}

func (a *routingAgent) Send(ctx context.Context, sessionID, utterance string) (target.Reply, error) {
	a.mu.Lock()
	agent, ok := a.assigned[sessionID]
	if !ok {
		agent = a.agents[a.next%len(a.agents)]
		a.assigned[sessionID] = agent
		a.next++
	}
	a.mu.Unlock()
	return agent.Send(ctx, sessionID, utterance)
}

// failingAgent always returns the same transport error and counts attempts.
type failingAgent struct {
	mu         sync.Mutex
	calls      int
	statusCode int
}

func (a *failingAgent) Send(ctx context.Context, sessionID, utterance string) (target.Reply, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return target.Reply{}, &target.TransportError{Op: "send", StatusCode: a.statusCode}
}

func TestEngineTransportErrorDoesNotAbortSiblings(t *testing.T) {
	broken := &failingAgent{statusCode: 503}
	router := newRoutingAgent(broken, target.NewScriptedAgent(happyScript))

	cfg := testConfig(
		happyScenario("broken-target"),
		happyScenario("healthy-target"),
	)
	cfg.Defaults.Concurrency = 1

	store := statestore.NewMemoryStore()
	eng, err := New(cfg, WithAgent(router), WithStore(store))
	require.NoError(t, err)

	summary, all, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	byName := map[string]results.TestResult{}
	for _, r := range all {
		byName[r.TestID] = r
	}

	errored := byName["broken-target"]
	assert.Equal(t, results.StatusError, errored.Status)
	assert.Contains(t, errored.Error, "agent call failed after 3 attempts")

	passed := byName["healthy-target"]
	assert.Equal(t, results.StatusPassed, passed.Status)
	assert.Equal(t, 7, passed.TurnCount)

	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Errors)

	// Both verdicts land in the state store regardless of outcome.
	stored, err := store.ListResults(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEngineCancelledBeforeSchedulingRunsNothing(t *testing.T) {
	eng, err := New(testConfig(happyScenario("never-runs")), WithMockMode())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, all, err := eng.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, summary.TotalTests)
}

// recordingRepo captures repository calls for wiring assertions.
type recordingRepo struct {
	mu        sync.Mutex
	streamed  []string
	batches   int
	summaries int
}

func (r *recordingRepo) SupportsStreaming() bool { return true }

func (r *recordingRepo) SaveResult(res *results.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamed = append(r.streamed, res.TestID)
	return nil
}

func (r *recordingRepo) SaveResults(rs []results.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	return nil
}

func (r *recordingRepo) SaveSummary(s *results.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries++
	return nil
}

func (r *recordingRepo) LoadResults() ([]results.TestResult, error) {
	return nil, nil
}

func TestEngineStreamsToRepositories(t *testing.T) {
	repo := &recordingRepo{}
	cfg := testConfig(happyScenario("case-a"), happyScenario("case-b"))

	eng, err := New(cfg, WithMockMode(), WithRepositories(repo))
	require.NoError(t, err)

	_, _, err = eng.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"case-a", "case-b"}, repo.streamed)
	assert.Equal(t, 1, repo.batches)
	assert.Equal(t, 1, repo.summaries)
}

func TestEngineNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&config.Config{})
	assert.Error(t, err)

	// A live target needs an endpoint unless mock mode substitutes scripts.
	cfg := testConfig(happyScenario("no-endpoint"))
	_, err = New(cfg)
	assert.Error(t, err)

	_, err = New(cfg, WithMockMode())
	assert.NoError(t, err)
}
