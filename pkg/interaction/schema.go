package interaction

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator compiles and caches each tool's JSON Schema
// (registry.ToolDescriptor.ParameterSchema) and validates a prepared
// parameter map against it, the final step of parameter preparation (spec
// §4.10 step 6). Grounded on the teacher's registry/service.go, which
// compiles and caches a tool's schema once at registration rather than on
// every call.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewSchemaValidator constructs an empty SchemaValidator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{cache: make(map[string]*jsonschema.Schema)}
}

// Validate compiles schema for tool (once, then from cache) and validates
// params against it. A nil or empty schema always validates: not every tool
// declares one.
func (v *SchemaValidator) Validate(tool string, schema []byte, params map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := v.compile(tool, schema)
	if err != nil {
		return fmt.Errorf("interaction: compile schema for %s: %w", tool, err)
	}
	instance := make(map[string]any, len(params))
	for k, val := range params {
		instance[k] = val
	}
	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("interaction: %s: parameters do not satisfy schema: %w", tool, err)
	}
	return nil
}

func (v *SchemaValidator) compile(tool string, schema []byte) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.cache[tool]; ok {
		return s, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, err
	}
	resource := tool + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, err
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, err
	}
	v.cache[tool] = compiled
	return compiled, nil
}
