package persona

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldKind tags the generation strategy for a templated field.
type FieldKind string

// Supported generation kinds.
const (
	KindName    FieldKind = "name"
	KindPhone   FieldKind = "phone"
	KindEmail   FieldKind = "email"
	KindDate    FieldKind = "date"
	KindDOB     FieldKind = "dob"
	KindSelect  FieldKind = "select"
	KindBoolean FieldKind = "boolean"
	KindString  FieldKind = "string"
)

// FieldSpec declares how to generate a value for one templated field.
// Only the constraints relevant to the declared Kind are consulted.
type FieldSpec struct {
	Kind FieldKind `json:"type" yaml:"type"`

	// date: inclusive ISO-8601 bounds (YYYY-MM-DD).
	After  string `json:"after,omitempty" yaml:"after,omitempty"`
	Before string `json:"before,omitempty" yaml:"before,omitempty"`

	// dob: age bounds in whole years at resolution time.
	MinAge int `json:"min_age,omitempty" yaml:"min_age,omitempty"`
	MaxAge int `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// phone: '#' placeholders are replaced with digits. Defaults to
	// "###-###-####" when empty.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// select: value is drawn from this pool.
	Pool []string `json:"pool,omitempty" yaml:"pool,omitempty"`

	// boolean: probability of "true". Defaults to 0.5 when nil.
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`

	// string: fixed affixes around a random alphanumeric core.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Length int    `json:"length,omitempty" yaml:"length,omitempty"`

	// Seed overrides the derived per-field seed when set.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// FieldValue is the tagged union at every templated leaf: either a literal
// string copied verbatim into the resolved persona, or a generation spec.
// Exactly one side is set.
type FieldValue struct {
	Literal string
	Spec    *FieldSpec
}

// IsZero reports whether the field was omitted entirely.
func (v FieldValue) IsZero() bool {
	return v.Literal == "" && v.Spec == nil
}

// UnmarshalYAML decodes a scalar node as a literal and a mapping node as a
// generation spec.
func (v *FieldValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&v.Literal)
	case yaml.MappingNode:
		spec := &FieldSpec{}
		if err := node.Decode(spec); err != nil {
			return err
		}
		if spec.Kind == "" {
			return fmt.Errorf("field spec at line %d is missing type", node.Line)
		}
		v.Spec = spec
		return nil
	default:
		return fmt.Errorf("unexpected YAML node kind %d for persona field at line %d", node.Kind, node.Line)
	}
}

// MarshalYAML renders the union back to the authored shape.
func (v FieldValue) MarshalYAML() (interface{}, error) {
	if v.Spec != nil {
		return v.Spec, nil
	}
	return v.Literal, nil
}

// UnmarshalJSON mirrors the YAML behavior for JSON-authored templates.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &v.Literal)
	}
	spec := &FieldSpec{}
	if err := json.Unmarshal(data, spec); err != nil {
		return err
	}
	if spec.Kind == "" {
		return fmt.Errorf("field spec is missing type")
	}
	v.Spec = spec
	return nil
}

// MarshalJSON renders the union back to the authored shape.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.Spec != nil {
		return json.Marshal(v.Spec)
	}
	return json.Marshal(v.Literal)
}

// Template is a persona whose inventory leaves may be generation specs.
// Traits are always literal.
type Template struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Inventory   InventoryTemplate `json:"inventory" yaml:"inventory"`
	Traits      Traits            `json:"traits,omitempty" yaml:"traits,omitempty"`
}

// InventoryTemplate mirrors DataInventory with FieldValue leaves.
type InventoryTemplate struct {
	ParentName  FieldValue            `json:"parent_name,omitempty" yaml:"parent_name,omitempty"`
	ParentPhone FieldValue            `json:"parent_phone,omitempty" yaml:"parent_phone,omitempty"`
	ParentEmail FieldValue            `json:"parent_email,omitempty" yaml:"parent_email,omitempty"`
	ParentDOB   FieldValue            `json:"parent_dob,omitempty" yaml:"parent_dob,omitempty"`
	Children    []ChildTemplate       `json:"children,omitempty" yaml:"children,omitempty"`
	Insurance   InsuranceTemplate     `json:"insurance,omitempty" yaml:"insurance,omitempty"`
	Preferences PreferencesTemplate   `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	Custom      map[string]FieldValue `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// ChildTemplate mirrors ChildData with FieldValue leaves.
type ChildTemplate struct {
	Name  FieldValue `json:"name" yaml:"name"`
	DOB   FieldValue `json:"dob,omitempty" yaml:"dob,omitempty"`
	Notes string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// InsuranceTemplate mirrors Insurance with FieldValue leaves.
type InsuranceTemplate struct {
	Provider    FieldValue `json:"provider,omitempty" yaml:"provider,omitempty"`
	MemberID    FieldValue `json:"member_id,omitempty" yaml:"member_id,omitempty"`
	GroupNumber FieldValue `json:"group_number,omitempty" yaml:"group_number,omitempty"`
}

// PreferencesTemplate mirrors Preferences with FieldValue leaves.
type PreferencesTemplate struct {
	Location  FieldValue `json:"location,omitempty" yaml:"location,omitempty"`
	TimeOfDay FieldValue `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"`
	Days      FieldValue `json:"days,omitempty" yaml:"days,omitempty"`
}

// InvalidTemplateError reports a structurally invalid persona template.
// It is a configuration-time error: it surfaces before any turn executes.
type InvalidTemplateError struct {
	Template string
	Reason   string
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid persona template %q: %s", e.Template, e.Reason)
}

// InvalidConstraintError reports contradictory generation constraints on one
// field (e.g. min_age > max_age, empty selection pool). Configuration-time,
// fatal.
type InvalidConstraintError struct {
	FieldPath string
	Reason    string
}

func (e *InvalidConstraintError) Error() string {
	return fmt.Sprintf("invalid constraint on %s: %s", e.FieldPath, e.Reason)
}
