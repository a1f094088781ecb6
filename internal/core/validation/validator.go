// Package validation checks request bodies against JSON schemas and reports
// per-field messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(msgs, "; ")
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(data map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		// No schema defined, allow any data
		return nil
	}
	if data == nil {
		data = map[string]any{}
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(dataJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var validationErrors []ValidationError
		for _, desc := range result.Errors() {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fieldOf(desc),
				Message: desc.Description(),
			})
		}
		sort.SliceStable(validationErrors, func(i, j int) bool {
			return validationErrors[i].Field < validationErrors[j].Field
		})
		return &ValidationErrors{Errors: validationErrors}
	}

	return nil
}

// ValidatePartial validates an update body: every present field must be
// valid, but nothing is required.
func (v *Validator) ValidatePartial(data map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	partialSchema := make(map[string]any, len(schema))
	for k, val := range schema {
		if k != "required" {
			partialSchema[k] = val
		}
	}

	return v.Validate(data, partialSchema)
}

// Errors about a missing or unexpected property are reported against the
// object itself; name the property instead.
func fieldOf(desc gojsonschema.ResultError) string {
	switch desc.Type() {
	case "required", "additional_property_not_allowed":
		if p, ok := desc.Details()["property"].(string); ok {
			if desc.Field() == "(root)" {
				return p
			}
			return desc.Field() + "." + p
		}
	}
	return desc.Field()
}

func IsValidationError(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}

func GetValidationErrors(err error) *ValidationErrors {
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
