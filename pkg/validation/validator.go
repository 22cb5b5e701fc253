package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaResource = "adl-schema.json"

// Result is the outcome of validating one YAML document
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// SchemaValidator validates assistant definitions against the ADL JSON schema,
// which is itself written in YAML. It is safe for concurrent use and can be
// reloaded in place.
type SchemaValidator struct {
	path string

	mu       sync.RWMutex
	document map[string]interface{}
	compiled *jsonschema.Schema
}

// NewSchemaValidator loads and compiles the schema at path
func NewSchemaValidator(path string) (*SchemaValidator, error) {
	v := &SchemaValidator{path: path}
	if err := v.Reload(); err != nil {
		return nil, err
	}
	return v, nil
}

// NewSchemaValidatorFromBytes compiles an in-memory schema. Reload is a no-op.
func NewSchemaValidatorFromBytes(data []byte) (*SchemaValidator, error) {
	v := &SchemaValidator{}
	if err := v.load(data); err != nil {
		return nil, err
	}
	return v, nil
}

// Path returns the schema file, empty for in-memory schemas
func (v *SchemaValidator) Path() string {
	return v.path
}

// Reload re-reads the schema file. On any error the previous schema stays active.
func (v *SchemaValidator) Reload() error {
	if v.path == "" {
		return nil
	}
	data, err := os.ReadFile(v.path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	return v.load(data)
}

func (v *SchemaValidator) load(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("schema is empty")
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	doc, err := toJSONValue(raw)
	if err != nil {
		return fmt.Errorf("convert schema: %w", err)
	}
	document, ok := doc.(map[string]interface{})
	if !ok {
		return fmt.Errorf("schema must be a mapping, got %T", doc)
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(encoded)); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.document = document
	v.compiled = compiled
	v.mu.Unlock()
	return nil
}

// Document returns the parsed schema as JSON-compatible values. Callers must
// not modify it.
func (v *SchemaValidator) Document() map[string]interface{} {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.document
}

// Validate parses content as YAML and checks it against the schema
func (v *SchemaValidator) Validate(content string) Result {
	var raw interface{}
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return invalid(fmt.Sprintf("YAML parsing error: %v", err))
	}

	instance, err := toJSONValue(raw)
	if err != nil {
		return invalid(fmt.Sprintf("YAML parsing error: %v", err))
	}

	v.mu.RLock()
	compiled := v.compiled
	v.mu.RUnlock()

	err = compiled.Validate(instance)
	if err == nil {
		return Result{Valid: true, Errors: []string{}}
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return invalid(fmt.Sprintf("Unexpected error: %v", err))
	}
	return Result{Valid: false, Errors: formatValidationError(ve)}
}

func invalid(message string) Result {
	return Result{Valid: false, Errors: []string{message}}
}

// formatValidationError flattens the error tree to its leaves, one line each,
// ordered by instance location.
func formatValidationError(ve *jsonschema.ValidationError) []string {
	var leaves []*jsonschema.ValidationError
	collectLeaves(ve, &leaves)

	sort.SliceStable(leaves, func(i, j int) bool {
		return leaves[i].InstanceLocation < leaves[j].InstanceLocation
	})

	seen := make(map[string]struct{}, len(leaves))
	messages := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		msg := fmt.Sprintf("Validation error at '%s': %s", instancePath(leaf.InstanceLocation), leaf.Message)
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		messages = append(messages, msg)
	}
	return messages
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]*jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, ve)
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

// instancePath turns a JSON pointer into "a > b > 0"
func instancePath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		parts[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
	}
	return strings.Join(parts, " > ")
}

// toJSONValue converts decoded YAML into the value space of encoding/json:
// string-keyed maps, []interface{}, json.Number for numbers.
func toJSONValue(v interface{}) (interface{}, error) {
	normalized, err := normalizeKeys(v)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeKeys(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			n, err := normalizeKeys(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			n, err := normalizeKeys(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			n, err := normalizeKeys(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
