package persona

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

func sampleTemplate() *Template {
	prob := 0.5
	return &Template{
		Name:        "generated-parent",
		Description: "Parent with one generated child",
		Inventory: InventoryTemplate{
			ParentName:  FieldValue{Spec: &FieldSpec{Kind: KindName}},
			ParentPhone: FieldValue{Spec: &FieldSpec{Kind: KindPhone}},
			ParentEmail: FieldValue{Spec: &FieldSpec{Kind: KindEmail}},
			ParentDOB:   FieldValue{Spec: &FieldSpec{Kind: KindDOB, MinAge: 25, MaxAge: 45}},
			Children: []ChildTemplate{
				{
					Name: FieldValue{Spec: &FieldSpec{Kind: KindName}},
					DOB:  FieldValue{Spec: &FieldSpec{Kind: KindDOB, MinAge: 3, MaxAge: 12}},
				},
			},
			Insurance: InsuranceTemplate{
				Provider: FieldValue{Spec: &FieldSpec{Kind: KindSelect, Pool: []string{"Aetna", "Cigna", "BCBS"}}},
				MemberID: FieldValue{Spec: &FieldSpec{Kind: KindString, Prefix: "MBR-", Length: 6}},
			},
			Preferences: PreferencesTemplate{
				Location:  FieldValue{Literal: "Downtown Clinic"},
				TimeOfDay: FieldValue{Spec: &FieldSpec{Kind: KindSelect, Pool: []string{"morning", "afternoon"}}},
			},
			Custom: map[string]FieldValue{
				"newsletter": {Spec: &FieldSpec{Kind: KindBoolean, Probability: &prob}},
			},
		},
		Traits: Traits{Verbosity: VerbosityNormal},
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := NewResolverWithClock(fixedClock)
	tmpl := sampleTemplate()

	first, meta1, err := r.Resolve(tmpl, 42)
	require.NoError(t, err)
	second, meta2, err := r.Resolve(tmpl, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same seed and template must resolve identically")
	assert.Equal(t, meta1.GeneratedFields, meta2.GeneratedFields)
	assert.Equal(t, int64(42), meta1.Seed)
}

func TestResolveDifferentSeedsDiffer(t *testing.T) {
	r := NewResolverWithClock(fixedClock)
	tmpl := sampleTemplate()

	a, _, err := r.Resolve(tmpl, 1)
	require.NoError(t, err)
	b, _, err := r.Resolve(tmpl, 2)
	require.NoError(t, err)

	assert.NotEqual(t, a.Inventory.ParentName, b.Inventory.ParentName)
}

func TestResolveFieldIsolation(t *testing.T) {
	r := NewResolverWithClock(fixedClock)
	base := sampleTemplate()
	modified := sampleTemplate()
	// Tighten one field's constraints; every other field must be unaffected.
	modified.Inventory.ParentDOB.Spec.MinAge = 30
	modified.Inventory.ParentDOB.Spec.MaxAge = 31

	a, _, err := r.Resolve(base, 7)
	require.NoError(t, err)
	b, _, err := r.Resolve(modified, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Inventory.ParentName, b.Inventory.ParentName)
	assert.Equal(t, a.Inventory.ParentPhone, b.Inventory.ParentPhone)
	assert.Equal(t, a.Inventory.ParentEmail, b.Inventory.ParentEmail)
	assert.Equal(t, a.Inventory.Children, b.Inventory.Children)
	assert.Equal(t, a.Inventory.Insurance, b.Inventory.Insurance)
}

func TestResolveLiteralsCopiedVerbatim(t *testing.T) {
	r := NewResolverWithClock(fixedClock)
	tmpl := sampleTemplate()

	p, meta, err := r.Resolve(tmpl, 99)
	require.NoError(t, err)

	assert.Equal(t, "Downtown Clinic", p.Inventory.Preferences.Location)
	assert.NotContains(t, meta.GeneratedFields, "inventory.preferences.location")
}

func TestResolveDOBRespectsAgeBounds(t *testing.T) {
	r := NewResolverWithClock(fixedClock)
	tmpl := sampleTemplate()

	for seed := int64(0); seed < 20; seed++ {
		p, _, err := r.Resolve(tmpl, seed)
		require.NoError(t, err)

		dob, err := time.Parse("2006-01-02", p.Inventory.Children[0].DOB)
		require.NoError(t, err)
		age := fixedClock().Sub(dob).Hours() / 24 / 365.25
		assert.GreaterOrEqual(t, age, 3.0, "seed %d", seed)
		assert.Less(t, age, 13.1, "seed %d", seed)
	}
}

func TestResolveInvalidConstraints(t *testing.T) {
	r := NewResolverWithClock(fixedClock)

	tests := []struct {
		name string
		spec *FieldSpec
	}{
		{"inverted ages", &FieldSpec{Kind: KindDOB, MinAge: 40, MaxAge: 20}},
		{"empty pool", &FieldSpec{Kind: KindSelect}},
		{"inverted dates", &FieldSpec{Kind: KindDate, After: "2026-06-01", Before: "2026-01-01"}},
		{"bad probability", &FieldSpec{Kind: KindBoolean, Probability: floatPtr(1.5)}},
		{"unknown kind", &FieldSpec{Kind: "uuid"}},
		{"phone without placeholders", &FieldSpec{Kind: KindPhone, Format: "n/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &Template{
				Name:      "bad",
				Inventory: InventoryTemplate{ParentName: FieldValue{Spec: tt.spec}},
			}
			_, _, err := r.Resolve(tmpl, 1)
			require.Error(t, err)
			var cerr *InvalidConstraintError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestResolveNilTemplate(t *testing.T) {
	_, _, err := NewResolver().Resolve(nil, 1)
	var terr *InvalidTemplateError
	require.ErrorAs(t, err, &terr)
}

func TestPersonaValueLookup(t *testing.T) {
	p := &Persona{
		Inventory: DataInventory{
			ParentName: "Avery Brooks",
			Children:   []ChildData{{Name: "Sam", DOB: "2019-04-02"}},
			Custom:     map[string]string{"referral": "pediatrician"},
		},
	}

	v, ok := p.Value(FieldParentName)
	assert.True(t, ok)
	assert.Equal(t, "Avery Brooks", v)

	v, ok = p.Value(FieldChildDOB)
	assert.True(t, ok)
	assert.Equal(t, "2019-04-02", v)

	_, ok = p.Value(FieldParentPhone)
	assert.False(t, ok, "missing data must report not-present")

	v, ok = p.Value(Field("referral"))
	assert.True(t, ok)
	assert.Equal(t, "pediatrician", v)
}

func floatPtr(f float64) *float64 { return &f }
