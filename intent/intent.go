// Package intent classifies target-agent utterances: what the agent is
// asking for or doing in a single turn.
//
// Classification is two-tiered. The deterministic tier matches an explicit
// ordered list of (intent, pattern) pairs, first match wins, and is total:
// it never fails, an unrecognized utterance classifies as Unknown with low
// confidence. An optional semantic tier may refine Unknown results when a
// SemanticEvaluator collaborator is configured; its absence or failure never
// degrades required behavior.
package intent

import (
	"github.com/callwise/arena/persona"
)

// Intent is the classifier's best guess at what the agent is doing.
type Intent string

// Agent intents known to the scheduling domain.
const (
	Greeting            Intent = "greeting"
	AskingParentName    Intent = "asking_parent_name"
	AskingPhone         Intent = "asking_phone"
	AskingEmail         Intent = "asking_email"
	AskingParentDOB     Intent = "asking_parent_dob"
	AskingChildName     Intent = "asking_child_name"
	AskingChildDOB      Intent = "asking_child_dob"
	AskingInsurance     Intent = "asking_insurance"
	AskingLocation      Intent = "asking_location"
	AskingTimePref      Intent = "asking_time_preference"
	OfferingSlot        Intent = "offering_slot"
	ConfirmingBooking   Intent = "confirming_booking"
	InitiatingTransfer  Intent = "initiating_transfer"
	AskingClarification Intent = "asking_clarification"
	ApologizingError    Intent = "apologizing_error"
	SayingGoodbye       Intent = "saying_goodbye"
	Unknown             Intent = "unknown"
)

// Classification is the result of classifying one agent utterance.
type Classification struct {
	Primary          Intent                   `json:"primary"`
	Confidence       float64                  `json:"confidence"`
	Secondary        []Intent                 `json:"secondary,omitempty"`
	Extracted        map[persona.Field]string `json:"extracted,omitempty"`
	IsQuestion       bool                     `json:"is_question"`
	RequiresResponse bool                     `json:"requires_response"`
	Reasoning        string                   `json:"reasoning,omitempty"`
}

// fieldBindings is the fixed intent-to-field table: which collectable field
// an agent intent is asking for.
var fieldBindings = map[Intent]persona.Field{
	AskingParentName: persona.FieldParentName,
	AskingPhone:      persona.FieldParentPhone,
	AskingEmail:      persona.FieldParentEmail,
	AskingParentDOB:  persona.FieldParentDOB,
	AskingChildName:  persona.FieldChildName,
	AskingChildDOB:   persona.FieldChildDOB,
	AskingInsurance:  persona.FieldInsuranceProvider,
	AskingLocation:   persona.FieldLocationPref,
	AskingTimePref:   persona.FieldTimePref,
}

// TargetField returns the collectable field this intent asks for, if any.
func (i Intent) TargetField() (persona.Field, bool) {
	f, ok := fieldBindings[i]
	return f, ok
}

// FieldIntents returns every intent bound to a collectable field.
func FieldIntents() []Intent {
	intents := make([]Intent, 0, len(fieldBindings))
	for i := range fieldBindings {
		intents = append(intents, i)
	}
	return intents
}

// Criteria describes each intent in plain language for the semantic tier.
var Criteria = map[Intent]string{
	Greeting:            "the agent greets the caller or opens the conversation",
	AskingParentName:    "the agent asks for the caller's or parent's full name",
	AskingPhone:         "the agent asks for a phone or callback number",
	AskingEmail:         "the agent asks for an email address",
	AskingParentDOB:     "the agent asks for the caller's own date of birth",
	AskingChildName:     "the agent asks for the child's or patient's name",
	AskingChildDOB:      "the agent asks for the child's or patient's date of birth",
	AskingInsurance:     "the agent asks about insurance coverage or member details",
	AskingLocation:      "the agent asks which office or location the caller prefers",
	AskingTimePref:      "the agent asks what day or time the caller prefers",
	OfferingSlot:        "the agent proposes a concrete appointment slot",
	ConfirmingBooking:   "the agent confirms that an appointment has been booked",
	InitiatingTransfer:  "the agent says it is transferring the caller to a human",
	AskingClarification: "the agent asks the caller to repeat or clarify something",
	ApologizingError:    "the agent apologizes for a problem or reports a failure",
	SayingGoodbye:       "the agent ends the conversation",
}
