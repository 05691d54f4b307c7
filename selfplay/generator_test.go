package selfplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
)

func samplePersona(v persona.Verbosity) *persona.Persona {
	return &persona.Persona{
		Name: "cooperative-parent",
		Inventory: persona.DataInventory{
			ParentName:  "Sarah Mitchell",
			ParentPhone: "555-867-5309",
			ParentEmail: "sarah@example.com",
			Children: []persona.ChildData{
				{Name: "Emma Mitchell", DOB: "2019-06-12"},
			},
			Insurance: persona.Insurance{
				Provider: "BlueCross",
				MemberID: "BC123456",
			},
		},
		Traits: persona.Traits{Verbosity: v},
	}
}

func classify(i intent.Intent) intent.Classification {
	return intent.Classification{Primary: i, Confidence: 0.9}
}

func emptyState(t *testing.T) *progress.State {
	t.Helper()
	return progress.NewState(nil, 8)
}

func TestAnswersFieldQuestions(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityNormal)

	out, err := g.NextUtterance(p, classify(intent.AskingParentName), emptyState(t))
	require.NoError(t, err)
	assert.Equal(t, "My name is Sarah Mitchell.", out)

	out, err = g.NextUtterance(p, classify(intent.AskingPhone), emptyState(t))
	require.NoError(t, err)
	assert.Equal(t, "You can reach me at 555-867-5309.", out)

	out, err = g.NextUtterance(p, classify(intent.AskingChildDOB), emptyState(t))
	require.NoError(t, err)
	assert.Equal(t, "My child was born on 2019-06-12.", out)
}

func TestTerseAnswersAreBareValues(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityTerse)

	out, err := g.NextUtterance(p, classify(intent.AskingParentName), emptyState(t))
	require.NoError(t, err)
	assert.Equal(t, "Sarah Mitchell", out)
}

func TestVerboseVolunteersAdjacentFact(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityVerbose)
	p.Traits.ProvidesExtraInfo = true

	out, err := g.NextUtterance(p, classify(intent.AskingChildName), emptyState(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Emma Mitchell")
	assert.Contains(t, out, "2019-06-12")
}

func TestVerboseWithoutExtraInfoStaysOnTopic(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityVerbose)

	out, err := g.NextUtterance(p, classify(intent.AskingChildName), emptyState(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Emma Mitchell")
	assert.NotContains(t, out, "2019-06-12")
}

func TestReconfirmsCollectedField(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityNormal)

	tr, err := progress.NewTracker([]progress.Goal{{
		ID:       "contact",
		Type:     progress.GoalDataCollection,
		Required: true,
		Fields:   []persona.Field{persona.FieldParentName},
	}}, progress.DefaultConfig())
	require.NoError(t, err)

	tr.Observe(progress.Observation{Classification: classify(intent.AskingParentName)})
	tr.Observe(progress.Observation{
		Classification: classify(intent.AskingParentName),
		UserUtterance:  "Sarah Mitchell",
	})

	out, err := g.NextUtterance(p, classify(intent.AskingParentName), tr.State())
	require.NoError(t, err)
	assert.Equal(t, "Yes, that's right, it's Sarah Mitchell.", out)
}

func TestMissingDataYieldsHonestRefusal(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityNormal)
	p.Inventory.Insurance.MemberID = ""

	out, err := g.NextUtterance(p, classify(intent.AskingInsurance), emptyState(t))
	require.NoError(t, err)
	assert.Contains(t, out, "BlueCross")

	p.Inventory.Insurance.Provider = ""
	out, err = g.NextUtterance(p, classify(intent.AskingInsurance), emptyState(t))
	require.NoError(t, err)
	assert.Equal(t, "I'm sorry, I don't have that information.", out)
}

func TestAcknowledgments(t *testing.T) {
	g := NewGenerator(42)
	p := samplePersona(persona.VerbosityNormal)

	cases := map[intent.Intent]string{
		intent.Greeting:          "Hi, I'd like to schedule an appointment for my child.",
		intent.OfferingSlot:      "That works for me.",
		intent.ConfirmingBooking: "Great, thank you so much!",
		intent.SayingGoodbye:     "Thanks, goodbye!",
		intent.Unknown:           "I'm just trying to schedule an appointment.",
	}
	for in, want := range cases {
		out, err := g.NextUtterance(p, classify(in), emptyState(t))
		require.NoError(t, err)
		assert.Equal(t, want, out)
	}
}

func TestDeterministicForSameSeed(t *testing.T) {
	p := samplePersona(persona.VerbosityNormal)
	p.Traits.TypoRate = 0.8
	p.Traits.SelfCorrects = true

	run := func(seed int64) []string {
		g := NewGenerator(seed)
		var outs []string
		for i := 0; i < 5; i++ {
			out, err := g.NextUtterance(p, classify(intent.AskingParentName), emptyState(t))
			require.NoError(t, err)
			outs = append(outs, out)
		}
		return outs
	}

	assert.Equal(t, run(7), run(7))
}

func TestSelfCorrectionIncludesCleanValue(t *testing.T) {
	p := samplePersona(persona.VerbosityTerse)
	p.Traits.TypoRate = 1.0
	p.Traits.SelfCorrects = true

	g := NewGenerator(3)
	out, err := g.NextUtterance(p, classify(intent.AskingParentName), emptyState(t))
	require.NoError(t, err)
	assert.Contains(t, out, "sorry, I mean Sarah Mitchell")
}

func TestNilPersonaErrors(t *testing.T) {
	g := NewGenerator(1)
	_, err := g.NextUtterance(nil, classify(intent.Greeting), emptyState(t))
	assert.Error(t, err)
}
