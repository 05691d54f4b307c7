package jsonrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwise/arena/results"
)

func sampleResults() []results.TestResult {
	return []results.TestResult{
		{
			TestID:      "happy-path",
			PersonaName: "sarah",
			Status:      results.StatusPassed,
			Passed:      true,
			TurnCount:   7,
			Duration:    3 * time.Second,
		},
		{
			TestID:      "stalling-agent",
			PersonaName: "sarah",
			Status:      results.StatusFailed,
			TurnCount:   4,
			Violations: []results.ConstraintViolation{
				{ConstraintID: "turn-budget", Type: "max_turns", Severity: results.SeverityHigh, Turn: 4},
			},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo := New(dir)

	rs := sampleResults()
	require.NoError(t, repo.SaveResults(rs))
	require.NoError(t, repo.SaveSummary(results.Summarize("run-1", "arena.yaml", rs)))

	// One file per result plus the index.
	for _, name := range []string{"happy-path.json", "stalling-agent.json", "index.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := repo.LoadResults()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byID := map[string]results.TestResult{}
	for _, r := range loaded {
		byID[r.TestID] = r
	}
	assert.True(t, byID["happy-path"].Passed)
	assert.Equal(t, results.StatusFailed, byID["stalling-agent"].Status)
	require.Len(t, byID["stalling-agent"].Violations, 1)
	assert.Equal(t, "turn-budget", byID["stalling-agent"].Violations[0].ConstraintID)
}

func TestStreamingWritesIndividualFiles(t *testing.T) {
	dir := t.TempDir()
	repo := New(dir)
	require.True(t, repo.SupportsStreaming())

	r := sampleResults()[0]
	require.NoError(t, repo.SaveResult(&r))

	_, err := os.Stat(filepath.Join(dir, "happy-path.json"))
	assert.NoError(t, err)
}

func TestLoadWithoutIndexFails(t *testing.T) {
	repo := New(t.TempDir())
	_, err := repo.LoadResults()
	assert.Error(t, err)
}

func TestSaveRejectsInvalidResults(t *testing.T) {
	repo := New(t.TempDir())
	assert.Error(t, repo.SaveResults(nil))
	assert.Error(t, repo.SaveResults([]results.TestResult{{Status: results.StatusPassed}}))
	assert.Error(t, repo.SaveResult(nil))
	assert.Error(t, repo.SaveSummary(nil))
}
