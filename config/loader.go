package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/callwise/arena/logger"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
)

// Load reads an arena manifest, resolves every scenario and persona
// reference relative to the manifest's directory, schema-validates each
// document, and cross-checks references. The returned Config is
// self-contained; nothing else touches the filesystem.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read arena manifest: %w", err)
	}
	if err := ValidateDocument(data, "arena"); err != nil {
		return nil, err
	}

	var manifest ArenaManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse arena manifest: %w", err)
	}
	if manifest.Kind != KindArena {
		return nil, fmt.Errorf("expected kind %s, got %q", KindArena, manifest.Kind)
	}

	baseDir := filepath.Dir(path)

	personas, err := loadPersonas(baseDir, manifest.Spec.Personas)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Name:       manifest.Metadata.Name,
		Defaults:   mergeDefaults(manifest.Spec.Defaults),
		Target:     manifest.Spec.Target,
		StateStore: manifest.Spec.StateStore,
		Metrics:    manifest.Spec.Metrics,
		OutputDir:  manifest.Spec.OutputDir,
		SourceFile: path,
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "results"
	}
	if cfg.StateStore.Type == "" {
		cfg.StateStore.Type = "memory"
	}

	for _, ref := range manifest.Spec.Scenarios {
		sc, warnings, err := loadScenario(baseDir, ref, personas, cfg.Defaults)
		if err != nil {
			return nil, err
		}
		cfg.Scenarios = append(cfg.Scenarios, *sc)
		cfg.Warnings = append(cfg.Warnings, warnings...)
	}

	if len(cfg.Scenarios) == 0 {
		return nil, fmt.Errorf("arena manifest lists no scenarios")
	}

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "warning", w)
	}
	return cfg, nil
}

func mergeDefaults(d Defaults) Defaults {
	stock := DefaultDefaults()
	if d.Concurrency <= 0 {
		d.Concurrency = stock.Concurrency
	}
	if d.MaxTurns <= 0 {
		d.MaxTurns = stock.MaxTurns
	}
	if d.TurnTimeout <= 0 {
		d.TurnTimeout = stock.TurnTimeout
	}
	if d.RetryAttempts <= 0 {
		d.RetryAttempts = stock.RetryAttempts
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = stock.RetryBackoff
	}
	return d
}

func loadPersonas(baseDir string, refs []string) (map[string]*persona.Template, error) {
	out := map[string]*persona.Template{}
	for _, ref := range refs {
		path := resolveRef(baseDir, ref)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read persona manifest %s: %w", ref, err)
		}
		if err := ValidateDocument(data, "persona"); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}

		var manifest PersonaManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse persona manifest %s: %w", ref, err)
		}
		if manifest.Kind != KindPersona {
			return nil, fmt.Errorf("%s: expected kind %s, got %q", ref, KindPersona, manifest.Kind)
		}

		name := manifest.Metadata.Name
		if name == "" {
			name = manifest.Spec.Name
		}
		if name == "" {
			return nil, fmt.Errorf("%s: persona manifest has no name", ref)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%s: duplicate persona %q", ref, name)
		}
		tmpl := manifest.Spec
		out[name] = &tmpl
	}
	return out, nil
}

func loadScenario(baseDir, ref string, personas map[string]*persona.Template, defaults Defaults) (*Scenario, []string, error) {
	path := resolveRef(baseDir, ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scenario manifest %s: %w", ref, err)
	}
	if err := ValidateDocument(data, "scenario"); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", ref, err)
	}

	var manifest ScenarioManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("failed to parse scenario manifest %s: %w", ref, err)
	}
	if manifest.Kind != KindScenario {
		return nil, nil, fmt.Errorf("%s: expected kind %s, got %q", ref, KindScenario, manifest.Kind)
	}

	spec := manifest.Spec
	sc := &Scenario{
		Name:            manifest.Metadata.Name,
		Seed:            spec.Seed,
		MaxTurns:        spec.MaxTurns,
		Goals:           spec.Goals,
		Constraints:     spec.Constraints,
		ScriptedReplies: spec.ScriptedReplies,
	}
	if sc.Name == "" {
		return nil, nil, fmt.Errorf("%s: scenario manifest has no metadata.name", ref)
	}
	if sc.MaxTurns <= 0 {
		sc.MaxTurns = defaults.MaxTurns
	}

	switch {
	case spec.Persona != nil && spec.PersonaRef != "":
		return nil, nil, fmt.Errorf("%s: persona and persona_ref are mutually exclusive", ref)
	case spec.Persona != nil:
		sc.Persona = spec.Persona
	case spec.PersonaRef != "":
		tmpl, ok := personas[spec.PersonaRef]
		if !ok {
			return nil, nil, fmt.Errorf("%s: persona_ref %q does not match any loaded persona", ref, spec.PersonaRef)
		}
		sc.Persona = tmpl
	default:
		return nil, nil, fmt.Errorf("%s: scenario needs a persona or persona_ref", ref)
	}

	for _, g := range sc.Goals {
		if err := g.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", ref, err)
		}
	}
	for _, c := range sc.Constraints {
		if err := c.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", ref, err)
		}
	}

	return sc, crossCheck(sc), nil
}

// crossCheck compares goal field requirements against the persona template:
// a required field the persona can never produce is almost always a
// misconfigured scenario, but legitimately drives goal-unreachable tests, so
// it warns instead of failing.
func crossCheck(sc *Scenario) []string {
	var warnings []string
	for _, g := range sc.Goals {
		if g.Type != progress.GoalDataCollection {
			continue
		}
		for _, f := range g.Fields {
			if !templateHasField(sc.Persona, f) {
				warnings = append(warnings,
					fmt.Sprintf("scenario %s: goal %s requires field %s the persona cannot provide",
						sc.Name, g.ID, f))
			}
		}
	}
	return warnings
}

func templateHasField(t *persona.Template, f persona.Field) bool {
	if t == nil {
		return false
	}
	switch f {
	case persona.FieldParentName:
		return !t.Inventory.ParentName.IsZero()
	case persona.FieldParentPhone:
		return !t.Inventory.ParentPhone.IsZero()
	case persona.FieldParentEmail:
		return !t.Inventory.ParentEmail.IsZero()
	case persona.FieldParentDOB:
		return !t.Inventory.ParentDOB.IsZero()
	case persona.FieldChildName:
		return len(t.Inventory.Children) > 0 && !t.Inventory.Children[0].Name.IsZero()
	case persona.FieldChildDOB:
		return len(t.Inventory.Children) > 0 && !t.Inventory.Children[0].DOB.IsZero()
	case persona.FieldInsuranceProvider:
		return !t.Inventory.Insurance.Provider.IsZero()
	case persona.FieldInsuranceMemberID:
		return !t.Inventory.Insurance.MemberID.IsZero()
	case persona.FieldLocationPref:
		return !t.Inventory.Preferences.Location.IsZero()
	case persona.FieldTimePref:
		return !t.Inventory.Preferences.TimeOfDay.IsZero()
	default:
		_, ok := t.Inventory.Custom[string(f)]
		return ok
	}
}

func resolveRef(baseDir, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(baseDir, ref)
}
