package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/callwise/arena/config"
	"github.com/callwise/arena/constraints"
	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/logger"
	"github.com/callwise/arena/metrics"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/pkg/errors"
	"github.com/callwise/arena/progress"
	"github.com/callwise/arena/results"
	"github.com/callwise/arena/selfplay"
	"github.com/callwise/arena/statestore"
	"github.com/callwise/arena/target"
)

// Engine schedules test cases across a bounded worker pool. A case failure
// never aborts its siblings; cancellation stops scheduling new cases and
// lets in-flight turns finish.
type Engine struct {
	cfg        *config.Config
	store      statestore.Store
	repos      []results.Repository
	agent      target.Agent
	mock       bool
	predicates progress.PredicateRegistry
	matchers   constraints.MatcherRegistry
	semantic   intent.SemanticEvaluator
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore replaces the state store built from configuration.
func WithStore(s statestore.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRepositories sets the result output repositories.
func WithRepositories(repos ...results.Repository) Option {
	return func(e *Engine) { e.repos = repos }
}

// WithAgent replaces the agent built from configuration. Tests use this to
// inject scripted agents.
func WithAgent(a target.Agent) Option {
	return func(e *Engine) { e.agent = a }
}

// WithMockMode substitutes each scenario's scripted replies for the real
// target.
func WithMockMode() Option {
	return func(e *Engine) { e.mock = true }
}

// WithPredicates supplies custom goal predicates.
func WithPredicates(r progress.PredicateRegistry) Option {
	return func(e *Engine) { e.predicates = r }
}

// WithMatchers supplies custom constraint event matchers.
func WithMatchers(r constraints.MatcherRegistry) Option {
	return func(e *Engine) { e.matchers = r }
}

// WithSemanticEvaluator enables the classifier's semantic fallback tier.
func WithSemanticEvaluator(s intent.SemanticEvaluator) Option {
	return func(e *Engine) { e.semantic = s }
}

// New builds an engine from loaded configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil || len(cfg.Scenarios) == 0 {
		return nil, errors.Newf("engine", "New", "configuration has no scenarios")
	}

	e := &Engine{
		cfg:        cfg,
		predicates: progress.PredicateRegistry{},
		matchers:   constraints.DefaultMatchers(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = statestore.NewMemoryStore()
	}
	if e.agent == nil && !e.mock {
		if cfg.Target.Endpoint == "" {
			return nil, errors.Newf("engine", "New", "no target endpoint configured and mock mode is off")
		}
		var httpOpts []target.HTTPOption
		for k, v := range cfg.Target.Headers {
			httpOpts = append(httpOpts, target.WithHeader(k, v))
		}
		e.agent = target.NewHTTPAgent(cfg.Target.Endpoint, httpOpts...)
	}
	return e, nil
}

// Run executes every scenario and returns the summary plus all results. The
// error covers run plumbing only (store and repository failures); test
// verdicts live in the results.
func (e *Engine) Run(ctx context.Context) (*results.Summary, []results.TestResult, error) {
	runID, err := e.store.CreateRun(ctx)
	if err != nil {
		return nil, nil, errors.New("engine", "CreateRun", err)
	}
	logger.Info("run started", "run_id", runID, "scenarios", len(e.cfg.Scenarios))

	var (
		mu  sync.Mutex
		all []results.TestResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Defaults.Concurrency)

	for i := range e.cfg.Scenarios {
		sc := e.cfg.Scenarios[i]
		if ctx.Err() != nil {
			break // stop scheduling; in-flight cases finish on their own
		}
		g.Go(func() error {
			result := e.runCase(gctx, &sc)
			if err := e.store.SaveResult(ctx, runID, result.TestID, result); err != nil {
				logger.Error("failed to persist result", "test", result.TestID, "error", err)
			}
			for _, repo := range e.repos {
				if repo.SupportsStreaming() {
					if err := repo.SaveResult(result); err != nil {
						logger.Error("failed to stream result", "test", result.TestID, "error", err)
					}
				}
			}
			mu.Lock()
			all = append(all, *result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; verdicts are in the results

	summary := results.Summarize(runID, e.cfg.SourceFile, all)
	if err := e.store.CompleteRun(ctx, runID, summary); err != nil {
		return summary, all, errors.New("engine", "CompleteRun", err)
	}

	for _, repo := range e.repos {
		if err := repo.SaveResults(all); err != nil {
			return summary, all, errors.New("engine", "SaveResults", err)
		}
		if err := repo.SaveSummary(summary); err != nil {
			return summary, all, errors.New("engine", "SaveSummary", err)
		}
	}

	logger.Info("run finished",
		"run_id", runID,
		"total", summary.TotalTests,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"errors", summary.Errors)
	return summary, all, nil
}

// runCase assembles and executes one scenario. Every failure mode, including
// component construction, converts to a terminal result for this case.
func (e *Engine) runCase(ctx context.Context, sc *config.Scenario) *results.TestResult {
	metrics.TestStarted()

	result := e.buildAndRun(ctx, sc)

	metrics.TestFinished(result)
	logger.Info("case finished",
		"test", result.TestID,
		"status", string(result.Status),
		"turns", result.TurnCount)
	return result
}

func (e *Engine) buildAndRun(ctx context.Context, sc *config.Scenario) *results.TestResult {
	fail := func(stage string, err error) *results.TestResult {
		return &results.TestResult{
			TestID: sc.Name,
			Status: results.StatusError,
			Error:  fmt.Sprintf("%s: %v", stage, err),
		}
	}

	p, meta, err := persona.NewResolver().Resolve(sc.Persona, sc.Seed)
	if err != nil {
		return fail("resolve persona", err)
	}

	tracker, err := progress.NewTracker(sc.Goals, e.cfg.Defaults.TrackerConfig(),
		progress.WithPredicates(e.predicates))
	if err != nil {
		return fail("build tracker", err)
	}

	evaluator, err := constraints.NewEvaluator(sc.Constraints, e.matchers)
	if err != nil {
		return fail("build evaluator", err)
	}

	var classifierOpts []intent.Option
	if e.semantic != nil {
		classifierOpts = append(classifierOpts, intent.WithSemanticEvaluator(e.semantic, 0.5))
	}
	classifier := intent.NewDefaultClassifier(classifierOpts...)

	agent := e.agent
	if e.mock {
		agent = target.NewScriptedAgent(sc.ScriptedReplies)
	}

	runner := NewGoalTestRunner(
		RunnerConfig{
			TestID:        sc.Name,
			SessionID:     uuid.NewString(),
			Seed:          meta.Seed,
			MaxTurns:      sc.MaxTurns,
			TurnTimeout:   e.cfg.Defaults.TurnTimeout.Std(),
			RetryAttempts: e.cfg.Defaults.RetryAttempts,
			RetryBackoff:  e.cfg.Defaults.RetryBackoff.Std(),
		},
		p,
		agent,
		classifier,
		selfplay.NewGenerator(meta.Seed),
		tracker,
		evaluator,
	)
	return runner.Run(ctx)
}
