// Package jsonrepo stores arena results as JSON files: one file per test
// result plus an index.json summary, the layout downstream dashboards read.
package jsonrepo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/callwise/arena/results"
)

const indexFileName = "index.json"

// Repository stores results as JSON files (one per result + index).
type Repository struct {
	outputDir string
}

// New creates a JSON result repository writing to outputDir.
func New(outputDir string) *Repository {
	return &Repository{outputDir: outputDir}
}

// OutputDir returns the output directory for this repository.
func (r *Repository) OutputDir() string {
	return r.outputDir
}

// SaveResults saves all results as individual JSON files.
func (r *Repository) SaveResults(rs []results.TestResult) error {
	if err := results.ValidateResults(rs); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i := range rs {
		if err := r.writeResult(&rs[i]); err != nil {
			return fmt.Errorf("failed to save result %s: %w", rs[i].TestID, err)
		}
	}
	return nil
}

// SaveSummary writes the aggregate summary as index.json.
func (r *Repository) SaveSummary(summary *results.Summary) error {
	if summary == nil {
		return &results.ValidationError{Field: "summary", Message: "summary cannot be nil"}
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return r.writeJSONFile(summary, filepath.Join(r.outputDir, indexFileName))
}

// SupportsStreaming reports that results can be written as they complete.
func (r *Repository) SupportsStreaming() bool { return true }

// SaveResult writes a single result file.
func (r *Repository) SaveResult(result *results.TestResult) error {
	if result == nil {
		return &results.ValidationError{Field: "result", Message: "result cannot be nil"}
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return r.writeResult(result)
}

// LoadResults reads previously saved results back via the index file.
func (r *Repository) LoadResults() ([]results.TestResult, error) {
	indexData, err := os.ReadFile(filepath.Join(r.outputDir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("index file not found, no results to load")
		}
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var summary results.Summary
	if err := json.Unmarshal(indexData, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}

	var loaded []results.TestResult
	for _, testID := range summary.Scenarios {
		data, err := os.ReadFile(r.resultPath(testID))
		if err != nil {
			return nil, fmt.Errorf("failed to read result %s: %w", testID, err)
		}
		var tr results.TestResult
		if err := json.Unmarshal(data, &tr); err != nil {
			return nil, fmt.Errorf("failed to parse result %s: %w", testID, err)
		}
		loaded = append(loaded, tr)
	}
	return loaded, nil
}

func (r *Repository) writeResult(result *results.TestResult) error {
	return r.writeJSONFile(result, r.resultPath(result.TestID))
}

func (r *Repository) resultPath(testID string) string {
	return filepath.Join(r.outputDir, testID+".json")
}

func (r *Repository) writeJSONFile(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
