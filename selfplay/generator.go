// Package selfplay generates the synthetic caller's side of the
// conversation. Given the agent's classified utterance and the tracked
// state, it decides what the persona would say next: answer the question,
// re-confirm something already given, or acknowledge and move on.
package selfplay

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/callwise/arena/intent"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
)

// UserTurnGenerator produces the next user utterance. The deterministic
// Generator below is the stock implementation; an LLM-backed one can be
// plugged in behind the same interface.
type UserTurnGenerator interface {
	NextUtterance(p *persona.Persona, c intent.Classification, st *progress.State) (string, error)
}

// Generator renders persona answers deterministically: the same seed,
// persona, and conversation state always produce the same utterance. The
// only randomness is trait noise (typos, self-corrections) drawn from the
// seeded source.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator whose trait randomness derives from seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// NextUtterance produces the persona's reply to the classified agent turn.
func (g *Generator) NextUtterance(p *persona.Persona, c intent.Classification, st *progress.State) (string, error) {
	if p == nil {
		return "", fmt.Errorf("selfplay: nil persona")
	}

	if field, ok := c.Primary.TargetField(); ok {
		return g.answerField(p, field, st), nil
	}
	return g.acknowledge(p, c.Primary), nil
}

func (g *Generator) answerField(p *persona.Persona, field persona.Field, st *progress.State) string {
	if st != nil {
		if v, ok := st.Collected(field); ok {
			return g.reconfirm(p, v.Value)
		}
	}

	value, ok := p.Value(field)
	if !ok || value == "" {
		return "I'm sorry, I don't have that information."
	}

	rendered := g.applyTypos(p, value)
	answer := renderAnswer(p.Traits.Verbosity, field, rendered)

	if p.Traits.Verbosity == persona.VerbosityVerbose && p.Traits.ProvidesExtraInfo {
		if extra := g.adjacentFact(p, field, st); extra != "" {
			answer = answer + " " + extra
		}
	}
	return answer
}

func (g *Generator) reconfirm(p *persona.Persona, value string) string {
	if p.Traits.Verbosity == persona.VerbosityTerse {
		return value
	}
	return fmt.Sprintf("Yes, that's right, it's %s.", value)
}

// answerTemplates phrases a normal-verbosity answer per field.
var answerTemplates = map[persona.Field]string{
	persona.FieldParentName:        "My name is %s.",
	persona.FieldParentPhone:       "You can reach me at %s.",
	persona.FieldParentEmail:       "My email is %s.",
	persona.FieldParentDOB:         "My date of birth is %s.",
	persona.FieldChildName:         "My child's name is %s.",
	persona.FieldChildDOB:          "My child was born on %s.",
	persona.FieldInsuranceProvider: "We're with %s.",
	persona.FieldInsuranceMemberID: "The member ID is %s.",
	persona.FieldLocationPref:      "We'd prefer the %s location.",
	persona.FieldTimePref:          "%s works best for us.",
}

func renderAnswer(v persona.Verbosity, field persona.Field, value string) string {
	if v == persona.VerbosityTerse {
		return value
	}
	tmpl, ok := answerTemplates[field]
	if !ok {
		return fmt.Sprintf("It's %s.", value)
	}
	answer := fmt.Sprintf(tmpl, value)
	if v == persona.VerbosityVerbose {
		answer = "Sure. " + answer
	}
	return answer
}

// adjacentFacts pairs each field with the fact a chatty caller volunteers
// alongside it.
var adjacentFacts = map[persona.Field]persona.Field{
	persona.FieldParentName:        persona.FieldParentPhone,
	persona.FieldParentPhone:       persona.FieldParentEmail,
	persona.FieldParentEmail:       persona.FieldParentPhone,
	persona.FieldChildName:         persona.FieldChildDOB,
	persona.FieldChildDOB:          persona.FieldChildName,
	persona.FieldInsuranceProvider: persona.FieldInsuranceMemberID,
	persona.FieldLocationPref:      persona.FieldTimePref,
	persona.FieldTimePref:          persona.FieldLocationPref,
}

func (g *Generator) adjacentFact(p *persona.Persona, field persona.Field, st *progress.State) string {
	adj, ok := adjacentFacts[field]
	if !ok {
		return ""
	}
	if st != nil {
		if _, collected := st.Collected(adj); collected {
			return ""
		}
	}
	value, ok := p.Value(adj)
	if !ok || value == "" {
		return ""
	}
	tmpl, ok := answerTemplates[adj]
	if !ok {
		return ""
	}
	return "Oh, and " + lowerFirst(fmt.Sprintf(tmpl, value))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// applyTypos perturbs the value per the persona's typo rate. Self-correcting
// personas repeat the clean value after the slip.
func (g *Generator) applyTypos(p *persona.Persona, value string) string {
	if p.Traits.TypoRate <= 0 || g.rng.Float64() >= p.Traits.TypoRate {
		return value
	}
	garbled := swapAdjacent(value, g.rng)
	if garbled == value {
		return value
	}
	if p.Traits.SelfCorrects {
		return fmt.Sprintf("%s, sorry, I mean %s", garbled, value)
	}
	return garbled
}

// swapAdjacent transposes one random pair of adjacent letters.
func swapAdjacent(s string, rng *rand.Rand) string {
	runes := []rune(s)
	if len(runes) < 2 {
		return s
	}
	var candidates []int
	for i := 0; i < len(runes)-1; i++ {
		if isLetter(runes[i]) && isLetter(runes[i+1]) && runes[i] != runes[i+1] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return s
	}
	i := candidates[rng.Intn(len(candidates))]
	runes[i], runes[i+1] = runes[i+1], runes[i]
	return string(runes)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// acknowledgments cover agent intents that ask for nothing.
var acknowledgments = map[intent.Intent]string{
	intent.Greeting:            "Hi, I'd like to schedule an appointment for my child.",
	intent.OfferingSlot:        "That works for me.",
	intent.ConfirmingBooking:   "Great, thank you so much!",
	intent.InitiatingTransfer:  "Okay, I'll hold.",
	intent.AskingClarification: "Sorry, I'm calling to book an appointment for my child.",
	intent.ApologizingError:    "That's okay, can we try again?",
	intent.SayingGoodbye:       "Thanks, goodbye!",
	intent.Unknown:             "I'm just trying to schedule an appointment.",
}

func (g *Generator) acknowledge(p *persona.Persona, primary intent.Intent) string {
	ack, ok := acknowledgments[primary]
	if !ok {
		ack = acknowledgments[intent.Unknown]
	}
	if p.Traits.Verbosity == persona.VerbosityTerse {
		return terseAck(primary, ack)
	}
	return ack
}

func terseAck(primary intent.Intent, full string) string {
	switch primary {
	case intent.Greeting:
		return "I need an appointment for my child."
	case intent.OfferingSlot:
		return "That works."
	case intent.ConfirmingBooking:
		return "Thanks."
	case intent.SayingGoodbye:
		return "Bye."
	default:
		return full
	}
}
