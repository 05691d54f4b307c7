package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/callwise/arena/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFieldQuestions(t *testing.T) {
	c := NewDefaultClassifier()

	tests := []struct {
		utterance string
		want      Intent
	}{
		{"May I have your name, please?", AskingParentName},
		{"What's the best number to reach you?", AskingPhone},
		{"Could you give me your email address?", AskingEmail},
		{"What is your child's date of birth?", AskingChildDOB},
		{"And the name of your daughter?", AskingChildName},
		{"Do you have insurance coverage?", AskingInsurance},
		{"Which office do you prefer?", AskingLocation},
		{"What time works best for you?", AskingTimePref},
		{"When were you born?", AskingParentDOB},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got := c.Classify(tt.utterance)
			assert.Equal(t, tt.want, got.Primary)
			assert.True(t, got.IsQuestion)
			assert.True(t, got.RequiresResponse)
			assert.Greater(t, got.Confidence, 0.5)
		})
	}
}

func TestClassifyTerminalIntents(t *testing.T) {
	c := NewDefaultClassifier()

	tests := []struct {
		utterance string
		want      Intent
	}{
		{"Great, your appointment is confirmed for Tuesday at 10am.", ConfirmingBooking},
		{"Let me transfer you to one of our staff.", InitiatingTransfer},
		{"Thanks for calling, have a great day!", SayingGoodbye},
	}

	for _, tt := range tests {
		got := c.Classify(tt.utterance)
		assert.Equal(t, tt.want, got.Primary, tt.utterance)
		assert.False(t, got.RequiresResponse, tt.utterance)
	}
}

func TestClassifyUnknownIsTotal(t *testing.T) {
	c := NewDefaultClassifier()

	for _, utterance := range []string{"", "zxqv blorp", "the quick brown fox"} {
		got := c.Classify(utterance)
		assert.Equal(t, Unknown, got.Primary, "utterance %q", utterance)
		assert.LessOrEqual(t, got.Confidence, 0.3)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := NewDefaultClassifier()

	// Mentions both a booking confirmation and a goodbye; confirmation is
	// ranked higher in the default order.
	got := c.Classify("You're all set! Have a great day.")
	assert.Equal(t, ConfirmingBooking, got.Primary)
	assert.Contains(t, got.Secondary, SayingGoodbye)
}

func TestClassifyChildDOBBeatsParentDOB(t *testing.T) {
	c := NewDefaultClassifier()

	got := c.Classify("Can I get your son's date of birth?")
	assert.Equal(t, AskingChildDOB, got.Primary)
}

func TestClassifyExtractsAcknowledgedValues(t *testing.T) {
	c := NewDefaultClassifier()

	got := c.Classify("I have your number as 555-867-5309, is that right?")
	require.NotNil(t, got.Extracted)
	assert.Equal(t, "555-867-5309", got.Extracted[persona.FieldParentPhone])

	got = c.Classify("We'll send the confirmation to avery3@example.com")
	assert.Equal(t, "avery3@example.com", got.Extracted[persona.FieldParentEmail])
}

func TestClassifyErrorLanguage(t *testing.T) {
	c := NewDefaultClassifier()

	got := c.Classify("I'm sorry, something went wrong on our end.")
	assert.Equal(t, ApologizingError, got.Primary)
}

func TestTargetFieldBindings(t *testing.T) {
	f, ok := AskingPhone.TargetField()
	require.True(t, ok)
	assert.Equal(t, persona.FieldParentPhone, f)

	_, ok = ConfirmingBooking.TargetField()
	assert.False(t, ok)
}

type stubEvaluator struct {
	match   Intent
	conf    float64
	err     error
	calls   int
	lastCri string
}

func (s *stubEvaluator) Evaluate(_ context.Context, _, criteria string) (EvalResult, error) {
	s.calls++
	s.lastCri = criteria
	if s.err != nil {
		return EvalResult{}, s.err
	}
	if criteria == Criteria[s.match] {
		return EvalResult{Passed: true, Confidence: s.conf, Reasoning: "matched criteria"}, nil
	}
	return EvalResult{Passed: false}, nil
}

func TestSemanticTierRefinesUnknown(t *testing.T) {
	eval := &stubEvaluator{match: AskingPhone, conf: 0.8}
	c := NewDefaultClassifier(WithSemanticEvaluator(eval, 0.5))

	got := c.ClassifyContext(context.Background(), "where can we ring you up later")
	assert.Equal(t, AskingPhone, got.Primary)
	assert.Equal(t, 0.8, got.Confidence)
}

func TestSemanticTierSkippedWhenConfident(t *testing.T) {
	eval := &stubEvaluator{match: AskingPhone, conf: 0.99}
	c := NewDefaultClassifier(WithSemanticEvaluator(eval, 0.5))

	got := c.ClassifyContext(context.Background(), "May I have your name?")
	assert.Equal(t, AskingParentName, got.Primary)
	assert.Zero(t, eval.calls)
}

func TestSemanticTierFailureFallsBack(t *testing.T) {
	eval := &stubEvaluator{err: errors.New("judge unavailable")}
	c := NewDefaultClassifier(WithSemanticEvaluator(eval, 0.5))

	got := c.ClassifyContext(context.Background(), "zxqv blorp")
	assert.Equal(t, Unknown, got.Primary)
}
