// Package junit writes goal test results as JUnit XML for CI integration.
package junit

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/callwise/arena/results"
)

// Repository persists results as a single JUnit XML report.
type Repository struct {
	outputPath        string
	suiteName         string
	includeTranscript bool
}

// Option configures a JUnit repository.
type Option func(*Repository)

// WithTranscript includes the full conversation transcript in system-out.
func WithTranscript() Option {
	return func(r *Repository) {
		r.includeTranscript = true
	}
}

// WithSuiteName overrides the root testsuites name (defaults to "arena").
func WithSuiteName(name string) Option {
	return func(r *Repository) {
		r.suiteName = name
	}
}

// New creates a JUnit XML repository writing to the given file path.
func New(outputPath string, opts ...Option) *Repository {
	r := &Repository{outputPath: outputPath, suiteName: "arena"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SupportsStreaming returns false; JUnit XML is written as one document.
func (r *Repository) SupportsStreaming() bool {
	return false
}

// SaveResult returns an error; JUnit reports are written in bulk by SaveResults.
func (r *Repository) SaveResult(result *results.TestResult) error {
	return fmt.Errorf("junit repository does not support streaming results")
}

// LoadResults returns an error; JUnit XML is write-only output for CI.
func (r *Repository) LoadResults() ([]results.TestResult, error) {
	return nil, fmt.Errorf("junit repository does not support loading results")
}

// SaveResults writes every result into a single JUnit XML report.
func (r *Repository) SaveResults(rs []results.TestResult) error {
	if err := results.ValidateResults(rs); err != nil {
		return fmt.Errorf("invalid results: %w", err)
	}

	doc := r.convert(rs)

	if dir := filepath.Dir(r.outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JUnit XML: %w", err)
	}
	data = append([]byte(xml.Header), data...)

	if err := os.WriteFile(r.outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JUnit report: %w", err)
	}
	return nil
}

// SaveSummary is a no-op; suite-level counters already summarize the run.
func (r *Repository) SaveSummary(summary *results.Summary) error {
	return nil
}

func (r *Repository) convert(rs []results.TestResult) *TestSuites {
	doc := &TestSuites{Name: r.suiteName}

	byTest := make(map[string][]results.TestResult)
	var order []string
	for _, res := range rs {
		if _, seen := byTest[res.TestID]; !seen {
			order = append(order, res.TestID)
		}
		byTest[res.TestID] = append(byTest[res.TestID], res)
	}

	for _, testID := range order {
		suite := r.buildSuite(testID, byTest[testID])
		doc.Suites = append(doc.Suites, suite)
		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Errors += suite.Errors
		doc.Time += suite.Time
	}
	return doc
}

func (r *Repository) buildSuite(testID string, rs []results.TestResult) *TestSuite {
	suite := &TestSuite{
		Name:      testID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for _, res := range rs {
		tc := TestCase{
			Name:      fmt.Sprintf("%s/%s", res.TestID, res.PersonaName),
			Classname: testID,
			Time:      res.Duration.Seconds(),
			Properties: []Property{
				{Name: "persona", Value: res.PersonaName},
				{Name: "seed", Value: strconv.FormatInt(res.ResolutionSeed, 10)},
				{Name: "turns", Value: strconv.Itoa(res.TurnCount)},
			},
		}

		switch {
		case res.Status == results.StatusError:
			tc.Error = &Error{
				Message: res.Error,
				Type:    "ExecutionError",
				Content: res.Error,
			}
			suite.Errors++
		case res.Status == results.StatusSkipped || res.Status == results.StatusCancelled:
			tc.Skipped = &Skipped{Message: string(res.Status)}
		case !res.Passed:
			tc.Failure = &Failure{
				Message: failureMessage(res),
				Type:    "GoalFailure",
				Content: failureDetail(res),
			}
			suite.Failures++
		}

		if r.includeTranscript && len(res.Transcript) > 0 {
			tc.SystemOut = &Output{Content: renderTranscript(res.Transcript)}
		}

		suite.Tests++
		suite.Time += res.Duration.Seconds()
		suite.TestCases = append(suite.TestCases, tc)
	}
	return suite
}

func failureMessage(res results.TestResult) string {
	var failed []string
	for _, g := range res.GoalResults {
		if g.Required && !g.Passed {
			failed = append(failed, g.GoalID)
		}
	}
	for _, v := range res.Violations {
		if v.Severity.Fatal() {
			failed = append(failed, v.ConstraintID)
		}
	}
	if len(failed) == 0 {
		return "test failed"
	}
	return "failed: " + strings.Join(failed, ", ")
}

func failureDetail(res results.TestResult) string {
	var b strings.Builder
	for _, g := range res.GoalResults {
		if g.Required && !g.Passed {
			fmt.Fprintf(&b, "goal %s: %s\n", g.GoalID, g.Message)
			if len(g.MissingFields) > 0 {
				fmt.Fprintf(&b, "  missing fields: %s\n", strings.Join(g.MissingFields, ", "))
			}
		}
	}
	for _, v := range res.Violations {
		fmt.Fprintf(&b, "constraint %s (%s, turn %d): %s\n", v.ConstraintID, v.Severity, v.Turn, v.Description)
	}
	for _, issue := range res.Issues {
		fmt.Fprintf(&b, "issue %s (turn %d): %s\n", issue.Type, issue.Turn, issue.Message)
	}
	return b.String()
}

func renderTranscript(turns []results.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, t.Role, t.Content)
	}
	return b.String()
}
