// Package validation checks assistant definitions written in ADL (YAML)
// against the ADL JSON schema.
//
// # Overview
//
// The schema file is YAML. It is parsed, converted to JSON values and
// compiled with github.com/santhosh-tekuri/jsonschema/v5. Documents are
// validated the same way: YAML is decoded and converted before validation.
//
// # Error Format
//
// Parse failures produce a single entry:
//
//	YAML parsing error: yaml: line 3: mapping values are not allowed in this context
//
// Schema violations produce one entry per failing leaf, located by the path
// of keys and indexes into the document:
//
//	Validation error at 'metadata > description > title': expected string, but got number
//
// # Usage Example
//
//	v, err := validation.NewSchemaValidator("schema.yaml")
//	if err != nil {
//		return err
//	}
//	result := v.Validate(yamlContent)
//	if !result.Valid {
//		fmt.Println(result.Errors)
//	}
//
// Hot reload:
//
//	err := v.Watch(ctx, logger, nil)
package validation
