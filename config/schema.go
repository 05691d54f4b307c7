package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaValidationError is one schema finding.
type SchemaValidationError struct {
	Field       string
	Description string
}

func (e SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidateDocument checks a YAML manifest against the embedded schema for
// its kind ("arena", "scenario", "persona"). All findings are reported
// together.
func ValidateDocument(yamlData []byte, kind string) error {
	schema, err := schemaFS.ReadFile("schemas/" + strings.ToLower(kind) + ".json")
	if err != nil {
		return fmt.Errorf("no schema for kind %q", kind)
	}

	// gojsonschema works on JSON, so the YAML document goes through a
	// JSON round-trip first.
	var doc interface{}
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var findings []string
	for _, e := range result.Errors() {
		findings = append(findings, fmt.Sprintf("  - %s", SchemaValidationError{
			Field:       e.Field(),
			Description: e.Description(),
		}))
	}
	return fmt.Errorf("%s manifest does not match schema:\n%s", kind, strings.Join(findings, "\n"))
}
