package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// SchemaValidator validates raw configuration documents against the generated schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the configuration schema once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiledOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			compileErr = fmt.Errorf("failed to generate schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("storefront.json", bytes.NewReader(data)); err != nil {
			compileErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}

		compiledSchema, compileErr = compiler.Compile("storefront.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile schema: %w", compileErr)
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return &SchemaValidator{schema: compiledSchema}, nil
}

// Validate validates configuration data against the schema.
// configData may be a raw map or any value that marshals to JSON.
func (v *SchemaValidator) Validate(configData interface{}) error {
	jsonData, err := json.Marshal(configData)
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON for validation: %w", err)
	}

	var dataToValidate interface{}
	if err := json.Unmarshal(jsonData, &dataToValidate); err != nil {
		return fmt.Errorf("failed to unmarshal JSON for validation: %w", err)
	}

	if err := v.schema.Validate(dataToValidate); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var errorMessages []string
			collectErrors(validationErr, &errorMessages)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(errorMessages, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
