package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwise/arena/constraints"
	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
	"github.com/callwise/arena/results"
	"github.com/callwise/arena/selfplay"
	"github.com/callwise/arena/target"
)

func resolvedPersona() *persona.Persona {
	return &persona.Persona{
		Name: "sarah",
		Inventory: persona.DataInventory{
			ParentName:  "Sarah Mitchell",
			ParentPhone: "555-123-4567",
			Children:    []persona.ChildData{{Name: "Emma", DOB: "2019-03-12"}},
		},
		Traits: persona.Traits{Verbosity: persona.VerbosityNormal},
	}
}

func newTestRunner(t *testing.T, cfg RunnerConfig, agent target.Agent) *GoalTestRunner {
	t.Helper()
	tracker, err := progress.NewTracker([]progress.Goal{
		{ID: "collect-name", Type: progress.GoalDataCollection, Required: true,
			Fields: []persona.Field{persona.FieldParentName}},
	}, progress.DefaultConfig())
	require.NoError(t, err)

	evaluator, err := constraints.NewEvaluator(nil, constraints.DefaultMatchers())
	require.NoError(t, err)

	return NewGoalTestRunner(cfg, resolvedPersona(), agent,
		intent.NewDefaultClassifier(), selfplay.NewGenerator(1), tracker, evaluator)
}

func TestRunnerHonorsTurnBudgetConstraint(t *testing.T) {
	tracker, err := progress.NewTracker([]progress.Goal{
		{ID: "collect-name", Type: progress.GoalDataCollection, Required: true,
			Fields: []persona.Field{persona.FieldParentName}},
	}, progress.DefaultConfig())
	require.NoError(t, err)

	// The constraint bounds the conversation even when the runner's own
	// turn ceiling is far looser.
	evaluator, err := constraints.NewEvaluator([]constraints.Constraint{
		{ID: "turn-budget", Type: constraints.MaxTurns, MaxTurns: 3},
	}, constraints.DefaultMatchers())
	require.NoError(t, err)

	runner := NewGoalTestRunner(
		RunnerConfig{TestID: "tight-turn-budget", MaxTurns: 20},
		resolvedPersona(),
		target.NewScriptedAgent(stallScript),
		intent.NewDefaultClassifier(),
		selfplay.NewGenerator(1),
		tracker,
		evaluator,
	)

	r := runner.Run(context.Background())
	assert.Equal(t, results.StatusFailed, r.Status)
	assert.LessOrEqual(t, r.TurnCount, 4, "conversation must stop at the max_turns constraint")
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "turn-budget", r.Violations[0].ConstraintID)
}

// cancellingAgent replays a script and cancels the run after a fixed number
// of successful replies.
type cancellingAgent struct {
	mu        sync.Mutex
	inner     target.Agent
	remaining int
	cancel    context.CancelFunc
}

func (a *cancellingAgent) Send(ctx context.Context, sessionID, utterance string) (target.Reply, error) {
	reply, err := a.inner.Send(ctx, sessionID, utterance)
	a.mu.Lock()
	a.remaining--
	if a.remaining == 0 {
		a.cancel()
	}
	a.mu.Unlock()
	return reply, err
}

func TestRunnerCancellationFinishesInFlightTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent := &cancellingAgent{
		inner:     target.NewScriptedAgent(stallScript),
		remaining: 3,
		cancel:    cancel,
	}
	runner := newTestRunner(t, RunnerConfig{TestID: "cancelled-run", MaxTurns: 50}, agent)

	r := runner.Run(ctx)
	assert.Equal(t, results.StatusCancelled, r.Status)
	assert.False(t, r.Passed)
	assert.Equal(t, 3, r.TurnCount)
	assert.Len(t, r.Transcript, 6)
}

func TestRunnerDoesNotRetryPermanentErrors(t *testing.T) {
	agent := &failingAgent{statusCode: 404}
	runner := newTestRunner(t, RunnerConfig{
		TestID:        "permanent-error",
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, agent)

	r := runner.Run(context.Background())
	assert.Equal(t, results.StatusError, r.Status)
	assert.Contains(t, r.Error, "agent call failed")
	assert.Equal(t, 1, agent.calls)
}

func TestRunnerRetriesTransientErrorsToExhaustion(t *testing.T) {
	agent := &failingAgent{statusCode: 503}
	runner := newTestRunner(t, RunnerConfig{
		TestID:        "transient-error",
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, agent)

	r := runner.Run(context.Background())
	assert.Equal(t, results.StatusError, r.Status)
	assert.Equal(t, 3, agent.calls)
}

// recoveringAgent fails a fixed number of times and then hands over to the
// script; a retried turn should leave no trace in the transcript.
type recoveringAgent struct {
	mu       sync.Mutex
	failures int
	inner    target.Agent
}

func (a *recoveringAgent) Send(ctx context.Context, sessionID, utterance string) (target.Reply, error) {
	a.mu.Lock()
	if a.failures > 0 {
		a.failures--
		a.mu.Unlock()
		return target.Reply{}, &target.TransportError{Op: "send", StatusCode: 502}
	}
	a.mu.Unlock()
	return a.inner.Send(ctx, sessionID, utterance)
}

func TestRunnerRecoversWithinRetryBudget(t *testing.T) {
	agent := &recoveringAgent{failures: 2, inner: target.NewScriptedAgent(stallScript)}
	runner := newTestRunner(t, RunnerConfig{
		TestID:        "recovers",
		MaxTurns:      2,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, agent)

	r := runner.Run(context.Background())
	assert.Equal(t, results.StatusFailed, r.Status) // goal unmet, but no error
	assert.Empty(t, r.Error)
	assert.Equal(t, 2, r.TurnCount)
	assert.Len(t, r.Transcript, 4)
}
