package validation

// JSON Schema property types
type PropertyType string

const (
	PropertyTypeString  PropertyType = "string"
	PropertyTypeNumber  PropertyType = "number"
	PropertyTypeInteger PropertyType = "integer"
	PropertyTypeBoolean PropertyType = "boolean"
	PropertyTypeArray   PropertyType = "array"
	PropertyTypeObject  PropertyType = "object"
)

// Property is one entry of an object schema's "properties".
type Property struct {
	Type      any    `json:"type"`
	Format    string `json:"format,omitempty"`
	Enum      []any  `json:"enum,omitempty"`
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Minimum   *int   `json:"minimum,omitempty"`
	Maximum   *int   `json:"maximum,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// String returns a string property with the given length bounds; a zero
// max leaves the length unbounded.
func String(minLen, maxLen int) *Property {
	p := &Property{Type: PropertyTypeString, MinLength: &minLen}
	if maxLen > 0 {
		p.MaxLength = &maxLen
	}
	return p
}

// NullableString accepts a string or null.
func NullableString(maxLen int) *Property {
	p := &Property{Type: []PropertyType{PropertyTypeString, "null"}}
	if maxLen > 0 {
		p.MaxLength = &maxLen
	}
	return p
}

func Integer(min, max int) *Property {
	return &Property{Type: PropertyTypeInteger, Minimum: &min, Maximum: &max}
}

func Boolean() *Property {
	return &Property{Type: PropertyTypeBoolean}
}

func Enum(values ...string) *Property {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &Property{Type: PropertyTypeString, Enum: enum}
}

// Email accepts a string in email format.
func Email() *Property {
	return &Property{Type: PropertyTypeString, Format: "email"}
}

// Pattern returns a string property constrained by a regular expression.
func Pattern(expr string) *Property {
	return &Property{Type: PropertyTypeString, Pattern: expr}
}

// NewSchema builds an object schema. Undeclared properties are rejected.
func NewSchema(properties map[string]*Property, required ...string) map[string]any {
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
