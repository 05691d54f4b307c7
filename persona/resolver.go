package persona

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// ResolutionMetadata records how a template was expanded into a persona.
type ResolutionMetadata struct {
	Seed            int64     `json:"seed"`
	ResolvedAt      time.Time `json:"resolved_at"`
	GeneratedFields []string  `json:"generated_fields"`
}

const (
	defaultPhoneFormat  = "###-###-####"
	defaultStringLength = 8
	defaultMaxAge       = 80
	isoDate             = "2006-01-02"
)

var (
	firstNamePool = []string{
		"Avery", "Jordan", "Morgan", "Riley", "Casey", "Quinn", "Harper",
		"Rowan", "Emerson", "Sage", "Dana", "Jamie", "Alex", "Taylor",
	}
	lastNamePool = []string{
		"Nguyen", "Garcia", "Smith", "Okafor", "Patel", "Kim", "Rivera",
		"Johansson", "Brooks", "Ali", "Costa", "Fischer", "Morales", "Webb",
	}
	emailDomainPool = []string{"example.com", "example.net", "example.org"}
	stringCharset   = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Resolver expands persona templates into concrete personas. The clock is
// injectable so that age-relative generation is reproducible in tests.
type Resolver struct {
	now func() time.Time
}

// NewResolver creates a resolver using the wall clock.
func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// NewResolverWithClock creates a resolver with a fixed clock source.
func NewResolverWithClock(now func() time.Time) *Resolver {
	return &Resolver{now: now}
}

// Resolve expands every templated field deterministically from the given
// seed. Each field draws from its own PRNG derived from the seed plus the
// field's stable path, so resolving twice with the same seed is idempotent
// and changing one field's constraints never perturbs another field's value.
func (r *Resolver) Resolve(tmpl *Template, seed int64) (*Persona, *ResolutionMetadata, error) {
	if tmpl == nil {
		return nil, nil, &InvalidTemplateError{Template: "", Reason: "template is nil"}
	}
	if tmpl.Name == "" {
		return nil, nil, &InvalidTemplateError{Template: tmpl.Name, Reason: "missing name"}
	}

	res := &resolution{
		resolver: r,
		seed:     seed,
		meta: &ResolutionMetadata{
			Seed:       seed,
			ResolvedAt: r.now(),
		},
	}

	p := &Persona{
		Name:        tmpl.Name,
		Description: tmpl.Description,
		Traits:      tmpl.Traits,
	}

	inv := &tmpl.Inventory
	var err error
	if p.Inventory.ParentName, err = res.field("inventory.parent_name", inv.ParentName); err != nil {
		return nil, nil, err
	}
	if p.Inventory.ParentPhone, err = res.field("inventory.parent_phone", inv.ParentPhone); err != nil {
		return nil, nil, err
	}
	if p.Inventory.ParentEmail, err = res.field("inventory.parent_email", inv.ParentEmail); err != nil {
		return nil, nil, err
	}
	if p.Inventory.ParentDOB, err = res.field("inventory.parent_dob", inv.ParentDOB); err != nil {
		return nil, nil, err
	}

	for i, child := range inv.Children {
		c := ChildData{Notes: child.Notes}
		base := fmt.Sprintf("inventory.children[%d]", i)
		if c.Name, err = res.field(base+".name", child.Name); err != nil {
			return nil, nil, err
		}
		if c.DOB, err = res.field(base+".dob", child.DOB); err != nil {
			return nil, nil, err
		}
		p.Inventory.Children = append(p.Inventory.Children, c)
	}

	if p.Inventory.Insurance.Provider, err = res.field("inventory.insurance.provider", inv.Insurance.Provider); err != nil {
		return nil, nil, err
	}
	if p.Inventory.Insurance.MemberID, err = res.field("inventory.insurance.member_id", inv.Insurance.MemberID); err != nil {
		return nil, nil, err
	}
	if p.Inventory.Insurance.GroupNumber, err = res.field("inventory.insurance.group_number", inv.Insurance.GroupNumber); err != nil {
		return nil, nil, err
	}

	if p.Inventory.Preferences.Location, err = res.field("inventory.preferences.location", inv.Preferences.Location); err != nil {
		return nil, nil, err
	}
	if p.Inventory.Preferences.TimeOfDay, err = res.field("inventory.preferences.time_of_day", inv.Preferences.TimeOfDay); err != nil {
		return nil, nil, err
	}
	if p.Inventory.Preferences.Days, err = res.field("inventory.preferences.days", inv.Preferences.Days); err != nil {
		return nil, nil, err
	}

	if len(inv.Custom) > 0 {
		p.Inventory.Custom = make(map[string]string, len(inv.Custom))
		// Iterate keys in sorted order so GeneratedFields is stable.
		for _, key := range sortedKeys(inv.Custom) {
			v, err := res.field("inventory.custom."+key, inv.Custom[key])
			if err != nil {
				return nil, nil, err
			}
			p.Inventory.Custom[key] = v
		}
	}

	return p, res.meta, nil
}

// resolution carries per-Resolve state.
type resolution struct {
	resolver *Resolver
	seed     int64
	meta     *ResolutionMetadata
}

// field resolves one leaf: literals copy through, specs generate.
func (res *resolution) field(path string, v FieldValue) (string, error) {
	if v.Spec == nil {
		return v.Literal, nil
	}

	rng := res.fieldRNG(path, v.Spec.Seed)
	value, err := res.generate(path, v.Spec, rng)
	if err != nil {
		return "", err
	}
	res.meta.GeneratedFields = append(res.meta.GeneratedFields, path)
	return value, nil
}

// fieldRNG derives a PRNG scoped to one field from the global seed and the
// field's stable path.
func (res *resolution) fieldRNG(path string, override *int64) *rand.Rand {
	if override != nil {
		return rand.New(rand.NewSource(*override))
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", res.seed, path)
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (res *resolution) generate(path string, spec *FieldSpec, rng *rand.Rand) (string, error) {
	switch spec.Kind {
	case KindName:
		return firstNamePool[rng.Intn(len(firstNamePool))] + " " + lastNamePool[rng.Intn(len(lastNamePool))], nil
	case KindPhone:
		return generatePhone(path, spec, rng)
	case KindEmail:
		local := strings.ToLower(firstNamePool[rng.Intn(len(firstNamePool))])
		return fmt.Sprintf("%s%d@%s", local, rng.Intn(1000), emailDomainPool[rng.Intn(len(emailDomainPool))]), nil
	case KindDate:
		return generateDate(path, spec, rng)
	case KindDOB:
		return res.generateDOB(path, spec, rng)
	case KindSelect:
		if len(spec.Pool) == 0 {
			return "", &InvalidConstraintError{FieldPath: path, Reason: "selection pool is empty"}
		}
		return spec.Pool[rng.Intn(len(spec.Pool))], nil
	case KindBoolean:
		return generateBoolean(path, spec, rng)
	case KindString:
		return generateString(path, spec, rng)
	default:
		return "", &InvalidConstraintError{FieldPath: path, Reason: fmt.Sprintf("unknown field type %q", spec.Kind)}
	}
}

func generatePhone(path string, spec *FieldSpec, rng *rand.Rand) (string, error) {
	format := spec.Format
	if format == "" {
		format = defaultPhoneFormat
	}
	if !strings.ContainsRune(format, '#') {
		return "", &InvalidConstraintError{FieldPath: path, Reason: "phone format has no digit placeholders"}
	}

	var b strings.Builder
	first := true
	for _, ch := range format {
		if ch != '#' {
			b.WriteRune(ch)
			continue
		}
		if first {
			// Leading digit 2-9 keeps generated numbers plausible.
			b.WriteByte(byte('2' + rng.Intn(8)))
			first = false
		} else {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
	}
	return b.String(), nil
}

func generateDate(path string, spec *FieldSpec, rng *rand.Rand) (string, error) {
	if spec.After == "" || spec.Before == "" {
		return "", &InvalidConstraintError{FieldPath: path, Reason: "date requires after and before bounds"}
	}
	after, err := time.Parse(isoDate, spec.After)
	if err != nil {
		return "", &InvalidConstraintError{FieldPath: path, Reason: fmt.Sprintf("bad after bound: %v", err)}
	}
	before, err := time.Parse(isoDate, spec.Before)
	if err != nil {
		return "", &InvalidConstraintError{FieldPath: path, Reason: fmt.Sprintf("bad before bound: %v", err)}
	}
	if before.Before(after) {
		return "", &InvalidConstraintError{FieldPath: path, Reason: "before bound precedes after bound"}
	}

	days := int(before.Sub(after).Hours()/24) + 1
	return after.AddDate(0, 0, rng.Intn(days)).Format(isoDate), nil
}

func (res *resolution) generateDOB(path string, spec *FieldSpec, rng *rand.Rand) (string, error) {
	minAge, maxAge := spec.MinAge, spec.MaxAge
	if maxAge == 0 {
		maxAge = defaultMaxAge
	}
	if minAge < 0 {
		return "", &InvalidConstraintError{FieldPath: path, Reason: "min_age is negative"}
	}
	if minAge > maxAge {
		return "", &InvalidConstraintError{FieldPath: path, Reason: fmt.Sprintf("min_age %d exceeds max_age %d", minAge, maxAge)}
	}

	years := minAge + rng.Intn(maxAge-minAge+1)
	// Back off up to a year of days so birthdays spread across the calendar
	// without dipping below min_age.
	dayJitter := 0
	if years > minAge {
		dayJitter = rng.Intn(365)
	}
	dob := res.resolver.now().AddDate(-years, 0, -dayJitter)
	return dob.Format(isoDate), nil
}

func generateBoolean(path string, spec *FieldSpec, rng *rand.Rand) (string, error) {
	p := 0.5
	if spec.Probability != nil {
		p = *spec.Probability
	}
	if p < 0 || p > 1 {
		return "", &InvalidConstraintError{FieldPath: path, Reason: fmt.Sprintf("probability %v out of [0,1]", p)}
	}
	if rng.Float64() < p {
		return "true", nil
	}
	return "false", nil
}

func generateString(path string, spec *FieldSpec, rng *rand.Rand) (string, error) {
	length := spec.Length
	if length == 0 {
		length = defaultStringLength
	}
	if length < 0 {
		return "", &InvalidConstraintError{FieldPath: path, Reason: "length is negative"}
	}

	var b strings.Builder
	b.WriteString(spec.Prefix)
	for i := 0; i < length; i++ {
		b.WriteByte(stringCharset[rng.Intn(len(stringCharset))])
	}
	b.WriteString(spec.Suffix)
	return b.String(), nil
}

func sortedKeys(m map[string]FieldValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
