// Package persona defines the synthetic caller model used by the arena engine:
// who the simulated user is, what data they can supply, and how they behave.
//
// A persona is either authored fully literal or as a Template whose leaf
// fields carry generation specs. Templates are expanded by Resolver into a
// concrete, immutable Persona before any conversation turn executes.
package persona

// Field identifies one collectable piece of caller data. The intent
// classifier, progress tracker, and response generator all key on these
// identifiers.
type Field string

// Collectable fields known to the scheduling domain.
const (
	FieldParentName        Field = "parent_name"
	FieldParentPhone       Field = "parent_phone"
	FieldParentEmail       Field = "parent_email"
	FieldParentDOB         Field = "parent_dob"
	FieldChildName         Field = "child_name"
	FieldChildDOB          Field = "child_dob"
	FieldInsuranceProvider Field = "insurance_provider"
	FieldInsuranceMemberID Field = "insurance_member_id"
	FieldLocationPref      Field = "location_preference"
	FieldTimePref          Field = "time_preference"
)

// Verbosity controls how much a persona says per reply.
type Verbosity string

const (
	VerbosityTerse   Verbosity = "terse"
	VerbosityNormal  Verbosity = "normal"
	VerbosityVerbose Verbosity = "verbose"
)

// Persona is a fully resolved synthetic caller profile. It is immutable once
// resolved; the engine only ever reads from it.
type Persona struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Inventory   DataInventory `json:"inventory" yaml:"inventory"`
	Traits      Traits        `json:"traits" yaml:"traits"`
}

// DataInventory holds every piece of data the caller is able to supply.
// Empty fields mean the persona genuinely does not have that information.
type DataInventory struct {
	ParentName  string            `json:"parent_name,omitempty" yaml:"parent_name,omitempty"`
	ParentPhone string            `json:"parent_phone,omitempty" yaml:"parent_phone,omitempty"`
	ParentEmail string            `json:"parent_email,omitempty" yaml:"parent_email,omitempty"`
	ParentDOB   string            `json:"parent_dob,omitempty" yaml:"parent_dob,omitempty"`
	Children    []ChildData       `json:"children,omitempty" yaml:"children,omitempty"`
	Insurance   Insurance         `json:"insurance,omitempty" yaml:"insurance,omitempty"`
	Preferences Preferences       `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	Custom      map[string]string `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// ChildData describes one child the caller may book an appointment for.
// Order matters: agents typically ask about children in the order given.
type ChildData struct {
	Name  string `json:"name" yaml:"name"`
	DOB   string `json:"dob,omitempty" yaml:"dob,omitempty"`
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Insurance holds the caller's coverage details.
type Insurance struct {
	Provider    string `json:"provider,omitempty" yaml:"provider,omitempty"`
	MemberID    string `json:"member_id,omitempty" yaml:"member_id,omitempty"`
	GroupNumber string `json:"group_number,omitempty" yaml:"group_number,omitempty"`
}

// Preferences captures location and scheduling preferences.
type Preferences struct {
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
	TimeOfDay string `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"`
	Days      string `json:"days,omitempty" yaml:"days,omitempty"`
}

// Traits tune how the simulated caller behaves turn to turn.
type Traits struct {
	Verbosity         Verbosity `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
	ProvidesExtraInfo bool      `json:"provides_extra_info,omitempty" yaml:"provides_extra_info,omitempty"`
	Patience          int       `json:"patience,omitempty" yaml:"patience,omitempty"`
	TechSavvy         bool      `json:"tech_savvy,omitempty" yaml:"tech_savvy,omitempty"`
	TypoRate          float64   `json:"typo_rate,omitempty" yaml:"typo_rate,omitempty"`
	SelfCorrects      bool      `json:"self_corrects,omitempty" yaml:"self_corrects,omitempty"`
	ResponseDelayMs   int       `json:"response_delay_ms,omitempty" yaml:"response_delay_ms,omitempty"`
}

// Value looks up the persona's data for a collectable field. The second
// return is false when the persona does not have that information. Child
// fields resolve to the first child in the inventory.
func (p *Persona) Value(f Field) (string, bool) {
	var v string
	switch f {
	case FieldParentName:
		v = p.Inventory.ParentName
	case FieldParentPhone:
		v = p.Inventory.ParentPhone
	case FieldParentEmail:
		v = p.Inventory.ParentEmail
	case FieldParentDOB:
		v = p.Inventory.ParentDOB
	case FieldChildName:
		if len(p.Inventory.Children) > 0 {
			v = p.Inventory.Children[0].Name
		}
	case FieldChildDOB:
		if len(p.Inventory.Children) > 0 {
			v = p.Inventory.Children[0].DOB
		}
	case FieldInsuranceProvider:
		v = p.Inventory.Insurance.Provider
	case FieldInsuranceMemberID:
		v = p.Inventory.Insurance.MemberID
	case FieldLocationPref:
		v = p.Inventory.Preferences.Location
	case FieldTimePref:
		v = p.Inventory.Preferences.TimeOfDay
	default:
		if p.Inventory.Custom != nil {
			v = p.Inventory.Custom[string(f)]
		}
	}
	return v, v != ""
}
