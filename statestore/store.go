// Package statestore persists run state: which runs exist, their finished
// test results, and the final summary. Only immutable, completed results
// cross this boundary; in-flight conversation state never leaves the engine.
package statestore

import (
	"context"
	"fmt"

	"github.com/callwise/arena/results"
)

// ErrNotFound is returned when a run or result does not exist.
var ErrNotFound = fmt.Errorf("statestore: not found")

// Store persists run state. Saving a result twice for the same (run, test)
// pair overwrites; the engine relies on this for retried persistence.
type Store interface {
	// CreateRun registers a new run and returns its ID.
	CreateRun(ctx context.Context) (string, error)

	// SaveResult stores one finished test result under the run.
	SaveResult(ctx context.Context, runID, testID string, r *results.TestResult) error

	// GetResult fetches one result; ErrNotFound when absent.
	GetResult(ctx context.Context, runID, testID string) (*results.TestResult, error)

	// ListResults returns every result stored under the run.
	ListResults(ctx context.Context, runID string) ([]*results.TestResult, error)

	// CompleteRun marks the run finished and stores its summary.
	CompleteRun(ctx context.Context, runID string, s *results.Summary) error

	// GetSummary fetches a completed run's summary; ErrNotFound when the
	// run is unknown or still in flight.
	GetSummary(ctx context.Context, runID string) (*results.Summary, error)
}
