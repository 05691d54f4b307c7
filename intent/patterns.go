package intent

import (
	"regexp"

	"github.com/callwise/arena/persona"
)

// Pattern binds an intent to the phrases that signal it. Patterns are
// evaluated in slice order and the first hit wins, so more specific intents
// must come before generic ones.
type Pattern struct {
	Intent     Intent
	Confidence float64
	Matchers   []*regexp.Regexp
}

// Match reports whether any matcher hits the (lowercased) utterance.
func (p Pattern) Match(lower string) bool {
	for _, m := range p.Matchers {
		if m.MatchString(lower) {
			return true
		}
	}
	return false
}

func rx(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// DefaultPatterns returns the stock scheduling-domain vocabulary. The order
// is the tie-break order: transfer and terminal intents first, then field
// questions from most to least specific, then conversational filler.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{InitiatingTransfer, 0.95, rx(
			`transfer(ring)? you`,
			`connect you (to|with)`,
			`put you through`,
			`hand you (over|off) to`,
		)},
		{ConfirmingBooking, 0.95, rx(
			`(appointment|booking|visit) (is|has been) (confirmed|booked|scheduled)`,
			`you('re| are) all set`,
			`i('ve| have) (booked|scheduled|confirmed)`,
			`confirmation (number|code)`,
		)},
		{OfferingSlot, 0.9, rx(
			`we have (an opening|availability|a slot)`,
			`(available|open) (at|on)`,
			`how about .* (am|pm|o'clock|morning|afternoon)`,
			`would .* (work|suit) for you`,
			`i can offer`,
		)},
		{ApologizingError, 0.85, rx(
			`(i('m| am)|we('re| are)) sorry`,
			`apologi[sz]e`,
			`something went wrong`,
			`(unable|not able) to`,
			`(technical|system) (issue|error|difficult)`,
			`try again later`,
		)},
		{AskingChildDOB, 0.9, rx(
			`(child|son|daughter|patient|kid)('s)?.{0,40}(date of birth|birth ?date|dob|born)`,
			`how old is (your|the) (child|son|daughter|patient)`,
			`when (was|is) (your|the) (child|son|daughter|patient) born`,
		)},
		{AskingChildDOB, 0.75, rx(
			`(date of birth|birth ?date|dob).{0,40}(child|son|daughter|patient)`,
		)},
		{AskingChildName, 0.9, rx(
			`(child|son|daughter|patient|kid)('s)? (full )?name`,
			`name of (your|the) (child|son|daughter|patient)`,
			`who (is|will) the (appointment|visit) (for|be for)`,
		)},
		{AskingParentDOB, 0.85, rx(
			`your (own )?(date of birth|birth ?date|dob)`,
			`when were you born`,
		)},
		{AskingPhone, 0.9, rx(
			`(phone|contact|callback|cell|mobile) number`,
			`number (to|where) (reach|call)`,
			`best number`,
		)},
		{AskingEmail, 0.9, rx(
			`e-?mail( address)?`,
		)},
		{AskingInsurance, 0.9, rx(
			`insurance`,
			`member (id|number)`,
			`(coverage|policy) (provider|number|information)`,
		)},
		{AskingLocation, 0.85, rx(
			`which (office|location|clinic|branch)`,
			`(office|location|clinic) (do you|would you) prefer`,
			`closest to you`,
		)},
		{AskingTimePref, 0.85, rx(
			`what (day|time|days|times) (works?|suits?|would)`,
			`prefer(red)? (day|time|days|times)`,
			`morning(s)? or afternoon(s)?`,
			`when (would|are) you (like|available|free)`,
		)},
		{AskingParentName, 0.85, rx(
			`(your|the) (full |first and last )?name`,
			`may i (have|get|ask) (your|the) name`,
			`who am i speaking (with|to)`,
			`name,? please`,
		)},
		{AskingClarification, 0.8, rx(
			`(could|can) you (repeat|say that again|clarify|spell)`,
			`i didn('|')?t (catch|understand|get) that`,
			`(sorry|pardon)\?`,
			`what do you mean`,
		)},
		{SayingGoodbye, 0.9, rx(
			`\bgood-?bye\b`,
			`\bbye\b`,
			`have a (great|good|nice|wonderful) (day|one|evening|afternoon)`,
			`take care`,
			`thanks for calling`,
		)},
		{Greeting, 0.7, rx(
			`^(hi|hello|hey|good (morning|afternoon|evening)|welcome)\b`,
			`how (can|may) i help`,
		)},
	}
}

// Extraction regexes pick out values the agent appears to have acknowledged
// when reading information back to the caller.
var (
	phoneExtract = regexp.MustCompile(`\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}`)
	emailExtract = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	dateExtract  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4}`)
)

// extractInfo pulls acknowledged values out of an agent utterance. Values are
// keyed by the collectable field they most plausibly belong to; ambiguous
// dates are left to the tracker, which knows which field is pending.
func extractInfo(lower string) map[persona.Field]string {
	var out map[persona.Field]string
	put := func(f persona.Field, v string) {
		if out == nil {
			out = make(map[persona.Field]string)
		}
		out[f] = v
	}

	if m := phoneExtract.FindString(lower); m != "" {
		put(persona.FieldParentPhone, m)
	}
	if m := emailExtract.FindString(lower); m != "" {
		put(persona.FieldParentEmail, m)
	}
	if m := dateExtract.FindString(lower); m != "" {
		put(persona.FieldChildDOB, m)
	}
	return out
}
