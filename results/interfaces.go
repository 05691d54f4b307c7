package results

import "fmt"

// Repository provides abstract access to result output formatting. Each
// implementation handles one on-disk format (JSON files, JUnit XML); the CLI
// can fan results out to several repositories at once.
type Repository interface {
	// SaveResults writes every result in the repository's format.
	SaveResults(results []TestResult) error

	// SaveSummary writes the aggregate run summary.
	SaveSummary(summary *Summary) error

	// LoadResults loads previously saved results (for report generation).
	// Returns an error when the repository format does not support loading.
	LoadResults() ([]TestResult, error)

	// SupportsStreaming reports whether SaveResult can write incrementally.
	SupportsStreaming() bool

	// SaveResult writes a single result as it completes. Returns an error
	// when streaming is not supported.
	SaveResult(result *TestResult) error
}

// ValidationError reports malformed result data handed to a repository.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid result data: %s: %s", e.Field, e.Message)
}

// ValidateResults performs basic validation before a repository writes.
func ValidateResults(rs []TestResult) error {
	if rs == nil {
		return &ValidationError{Field: "results", Message: "results cannot be nil"}
	}
	for i := range rs {
		if rs[i].TestID == "" {
			return &ValidationError{Field: "TestID", Message: fmt.Sprintf("result %d has empty TestID", i)}
		}
		if rs[i].Status == "" {
			return &ValidationError{Field: "Status", Message: fmt.Sprintf("result %d has empty Status", i)}
		}
	}
	return nil
}
