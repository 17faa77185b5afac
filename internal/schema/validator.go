package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed settings.schema.yaml
var settingsSchemaYAML []byte

const settingsSchemaURI = "litejob://settings.schema.json"

// Validator handles JSON schema validation of runner settings
type Validator struct {
	settingsSchema *jsonschema.Schema
}

// NewValidator compiles the embedded settings schema
func NewValidator() (*Validator, error) {
	settingsSchema, err := compileSchema(settingsSchemaURI, settingsSchemaYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings schema: %w", err)
	}
	return &Validator{settingsSchema: settingsSchema}, nil
}

// ValidateSettings validates a decoded settings document
func (v *Validator) ValidateSettings(data interface{}) error {
	if v.settingsSchema == nil {
		return fmt.Errorf("settings schema not loaded")
	}
	return v.settingsSchema.Validate(data)
}

// ValidateSettingsYAML decodes raw YAML and validates it against the settings schema
func (v *Validator) ValidateSettingsYAML(data []byte) error {
	doc, err := toJSONValue(data)
	if err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	if doc == nil {
		return nil
	}
	return v.ValidateSettings(doc)
}

// compileSchema compiles a schema given as YAML or JSON
func compileSchema(uri string, data []byte) (*jsonschema.Schema, error) {
	schemaData, err := toJSONValue(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == uri {
			return io.NopCloser(strings.NewReader(string(jsonData))), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}

	return compiler.Compile(uri)
}

// toJSONValue parses YAML into the plain value shapes the schema validator
// expects: a JSON round trip turns every number into float64 and every map
// into map[string]interface{}.
func toJSONValue(data []byte) (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
