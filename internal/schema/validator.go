// Package schema provides JSON Schema validation with custom formats.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed template.schema.json
var templateSchema []byte

//go:embed alert.schema.json
var alertSchema []byte

// Validator validates data against a compiled JSON Schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles a validator from schema bytes. Custom formats are
// registered first.
func NewValidator(schemaData []byte) (*Validator, error) {
	RegisterCustomFormats()
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// NewTemplateValidator validates behavior template documents.
func NewTemplateValidator() (*Validator, error) {
	return NewValidator(templateSchema)
}

// NewAlertValidator validates obstacle alert payloads.
func NewAlertValidator() (*Validator, error) {
	return NewValidator(alertSchema)
}

// Validate validates a decoded document against the schema.
func (v *Validator) Validate(data map[string]interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateBytes validates raw JSON bytes.
func (v *Validator) ValidateBytes(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return v.Validate(obj)
}
