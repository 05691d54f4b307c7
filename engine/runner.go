// Package engine drives goal tests: one runner per test case holds the
// conversation with the target agent, and the Engine schedules runners
// across a bounded worker pool, persisting exactly one result per case.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/callwise/arena/constraints"
	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/logger"
	"github.com/callwise/arena/metrics"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
	"github.com/callwise/arena/results"
	"github.com/callwise/arena/selfplay"
	"github.com/callwise/arena/target"
)

// RunnerConfig carries the per-case execution knobs.
type RunnerConfig struct {
	TestID        string
	SessionID     string
	Seed          int64
	MaxTurns      int
	TurnTimeout   time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// GoalTestRunner executes one test case. It owns the conversation state and
// the transcript; the frozen TestResult it returns is never mutated again.
type GoalTestRunner struct {
	cfg        RunnerConfig
	persona    *persona.Persona
	agent      target.Agent
	classifier *intent.Classifier
	generator  selfplay.UserTurnGenerator
	tracker    *progress.Tracker
	evaluator  *constraints.Evaluator
}

// NewGoalTestRunner assembles a runner from ready components.
func NewGoalTestRunner(
	cfg RunnerConfig,
	p *persona.Persona,
	agent target.Agent,
	classifier *intent.Classifier,
	generator selfplay.UserTurnGenerator,
	tracker *progress.Tracker,
	evaluator *constraints.Evaluator,
) *GoalTestRunner {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 30
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &GoalTestRunner{
		cfg:        cfg,
		persona:    p,
		agent:      agent,
		classifier: classifier,
		generator:  generator,
		tracker:    tracker,
		evaluator:  evaluator,
	}
}

// Run holds the conversation to termination and freezes the result. Every
// failure mode lands in the result; Run never aborts a sibling case.
func (r *GoalTestRunner) Run(ctx context.Context) *results.TestResult {
	start := time.Now()
	result := &results.TestResult{
		TestID:         r.cfg.TestID,
		SessionID:      r.cfg.SessionID,
		PersonaName:    r.persona.Name,
		ResolutionSeed: r.cfg.Seed,
		StartTime:      start,
	}

	// The synthetic caller opens the conversation.
	lastClassification := intent.Classification{Primary: intent.Greeting, Confidence: 1.0}

	var (
		terminal  bool
		cancelled bool
	)
	for !terminal {
		utterance, err := r.generator.NextUtterance(r.persona, lastClassification, r.tracker.State())
		if err != nil {
			result.Error = fmt.Sprintf("generate user turn: %v", err)
			result.Status = results.StatusError
			break
		}

		turnNo := r.tracker.State().TurnCount + 1
		result.Transcript = append(result.Transcript, results.Turn{
			Role:      results.RoleUser,
			Content:   utterance,
			Timestamp: time.Now(),
		})
		logger.AgentCall(r.cfg.SessionID, turnNo, "utterance", utterance)

		reply, err := r.send(ctx, utterance)
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			logger.AgentCallError(r.cfg.SessionID, turnNo, err)
			result.Error = fmt.Sprintf("agent call failed after %d attempts: %v", r.cfg.RetryAttempts, err)
			result.Status = results.StatusError
			break
		}
		metrics.AgentReply(reply.Latency)
		logger.AgentReply(r.cfg.SessionID, turnNo, reply.Latency.Milliseconds(), "reply", reply.Text)

		result.Transcript = append(result.Transcript, results.Turn{
			Role:           results.RoleAgent,
			Content:        reply.Text,
			Timestamp:      time.Now(),
			ResponseTimeMs: reply.Latency.Milliseconds(),
		})

		classification := r.classifier.ClassifyContext(ctx, reply.Text)
		r.tracker.Observe(progress.Observation{
			Classification: classification,
			AgentUtterance: reply.Text,
			UserUtterance:  utterance,
			RoundTrip:      reply.Latency,
		})
		r.evaluator.CheckTurn(constraints.TurnEvent{
			Turn:           r.tracker.State().TurnCount,
			Classification: classification,
			AgentUtterance: reply.Text,
			UserUtterance:  utterance,
		})

		lastClassification = classification
		terminal = r.shouldTerminate(start)

		// Cancellation lets the in-flight turn finish, then stops.
		if !terminal && ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	return r.freeze(result, start, cancelled)
}

// send calls the agent with the per-turn timeout, retrying transient
// transport errors with exponential backoff.
func (r *GoalTestRunner) send(ctx context.Context, utterance string) (target.Reply, error) {
	operation := func() (target.Reply, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.TurnTimeout)
		defer cancel()

		reply, err := r.agent.Send(callCtx, r.cfg.SessionID, utterance)
		if err != nil {
			if ctx.Err() != nil {
				// Run-level cancellation is never retried.
				return target.Reply{}, backoff.Permanent(ctx.Err())
			}
			if !target.IsRetryable(err) {
				return target.Reply{}, backoff.Permanent(err)
			}
			return target.Reply{}, err
		}
		return reply, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.cfg.RetryBackoff

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(r.cfg.RetryAttempts)),
	)
}

func (r *GoalTestRunner) shouldTerminate(start time.Time) bool {
	switch {
	case r.tracker.RequiredGoalsComplete():
		return true
	case r.tracker.RequiredGoalFailed():
		return true
	case r.evaluator.HasFatal():
		return true
	case r.tracker.State().TurnCount >= r.cfg.MaxTurns:
		return true
	}
	// Budget constraints stop the loop one turn past their bound, so
	// Finalize sees the overrun and flags the violation.
	if budget := r.evaluator.TurnBudget(); budget > 0 && r.tracker.State().TurnCount > budget {
		return true
	}
	if budget := r.evaluator.TimeBudget(); budget > 0 && time.Since(start) > budget {
		return true
	}
	return false
}

// freeze finalizes constraints, derives the verdict, and seals the result.
func (r *GoalTestRunner) freeze(result *results.TestResult, start time.Time, cancelled bool) *results.TestResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	result.TurnCount = r.tracker.State().TurnCount
	result.Violations = r.evaluator.Finalize(result.TurnCount, result.Duration)
	result.Issues = r.tracker.State().Issues()
	result.GoalResults = r.tracker.GoalResults()

	fatal := false
	for _, v := range result.Violations {
		if v.Severity.Fatal() {
			fatal = true
		}
	}
	result.Passed = r.tracker.RequiredGoalsComplete() && !fatal

	switch {
	case result.Status == results.StatusError:
		result.Passed = false
	case cancelled:
		result.Status = results.StatusCancelled
		result.Passed = false
	case result.Passed:
		result.Status = results.StatusPassed
	default:
		result.Status = results.StatusFailed
	}
	return result
}
