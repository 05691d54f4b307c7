package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeCountsByStatus(t *testing.T) {
	rs := []TestResult{
		{TestID: "a", PersonaName: "sarah", Status: StatusPassed, TurnCount: 7, Duration: 2 * time.Second},
		{TestID: "b", PersonaName: "sarah", Status: StatusPassed, TurnCount: 5, Duration: time.Second},
		{TestID: "c", PersonaName: "marcus", Status: StatusFailed, TurnCount: 12, Duration: 4 * time.Second},
		{TestID: "d", PersonaName: "marcus", Status: StatusError, TurnCount: 1},
		{TestID: "e", Status: StatusCancelled, TurnCount: 3},
	}

	s := Summarize("run-42", "arena.yaml", rs)

	assert.Equal(t, "run-42", s.RunID)
	assert.Equal(t, 5, s.TotalTests)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Cancelled)
	assert.Equal(t, 28, s.TotalTurns)
	assert.Equal(t, 7*time.Second, s.TotalDuration)
	assert.Equal(t, "arena.yaml", s.ConfigFile)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.Scenarios)
	assert.Equal(t, []string{"marcus", "sarah"}, s.Personas)
}

func TestSummarizeEmptyRun(t *testing.T) {
	s := Summarize("run-0", "", nil)
	assert.Zero(t, s.TotalTests)
	assert.Nil(t, s.Scenarios)
	assert.Nil(t, s.Personas)
}

func TestSeverityFatal(t *testing.T) {
	assert.False(t, SeverityLow.Fatal())
	assert.False(t, SeverityMedium.Fatal())
	assert.True(t, SeverityHigh.Fatal())
	assert.True(t, SeverityCritical.Fatal())
}

func TestValidateResults(t *testing.T) {
	assert.Error(t, ValidateResults(nil))
	assert.Error(t, ValidateResults([]TestResult{{Status: StatusPassed}}))
	assert.Error(t, ValidateResults([]TestResult{{TestID: "a"}}))
	assert.NoError(t, ValidateResults([]TestResult{}))
	assert.NoError(t, ValidateResults([]TestResult{{TestID: "a", Status: StatusPassed}}))
}
