package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFieldValueUnmarshalLiteral(t *testing.T) {
	var v FieldValue
	require.NoError(t, yaml.Unmarshal([]byte(`"Avery Brooks"`), &v))

	assert.Equal(t, "Avery Brooks", v.Literal)
	assert.Nil(t, v.Spec)
}

func TestFieldValueUnmarshalSpec(t *testing.T) {
	var v FieldValue
	doc := `
type: dob
min_age: 3
max_age: 12
`
	require.NoError(t, yaml.Unmarshal([]byte(doc), &v))

	require.NotNil(t, v.Spec)
	assert.Equal(t, KindDOB, v.Spec.Kind)
	assert.Equal(t, 3, v.Spec.MinAge)
	assert.Equal(t, 12, v.Spec.MaxAge)
	assert.Empty(t, v.Literal)
}

func TestFieldValueUnmarshalSpecMissingType(t *testing.T) {
	var v FieldValue
	err := yaml.Unmarshal([]byte("min_age: 3"), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")
}

func TestFieldValueUnmarshalRejectsSequence(t *testing.T) {
	var v FieldValue
	err := yaml.Unmarshal([]byte("[a, b]"), &v)
	assert.Error(t, err)
}

func TestTemplateRoundTrip(t *testing.T) {
	doc := `
name: template-parent
inventory:
  parent_name:
    type: name
  parent_phone: "555-0100"
  children:
    - name:
        type: name
      dob:
        type: dob
        min_age: 2
        max_age: 10
traits:
  verbosity: terse
  provides_extra_info: true
`
	var tmpl Template
	require.NoError(t, yaml.Unmarshal([]byte(doc), &tmpl))

	assert.Equal(t, "template-parent", tmpl.Name)
	require.NotNil(t, tmpl.Inventory.ParentName.Spec)
	assert.Equal(t, KindName, tmpl.Inventory.ParentName.Spec.Kind)
	assert.Equal(t, "555-0100", tmpl.Inventory.ParentPhone.Literal)
	require.Len(t, tmpl.Inventory.Children, 1)
	assert.Equal(t, VerbosityTerse, tmpl.Traits.Verbosity)
	assert.True(t, tmpl.Traits.ProvidesExtraInfo)

	out, err := yaml.Marshal(&tmpl)
	require.NoError(t, err)

	var again Template
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, tmpl, again)
}
