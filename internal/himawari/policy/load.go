package policy

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed matrix.yaml
var defaultMatrixYAML []byte

//go:embed matrix.schema.json
var matrixSchemaJSON string

// Load parses and validates a permissions matrix document. The document is
// checked against the embedded JSON schema before being decoded, so a
// malformed matrix fails loudly at startup instead of silently granting or
// denying access at runtime.
func Load(data []byte) (Matrix, error) {
	schema, err := jsonschema.CompileString("matrix.schema.json", matrixSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("policy: compile matrix schema: %w", err)
	}

	// Validate against the generic decoding first; yaml.v3 produces
	// map[string]interface{} values the schema library understands.
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("policy: parse matrix YAML: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("policy: matrix failed schema validation: %w", err)
	}

	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("policy: decode matrix: %w", err)
	}
	return m, nil
}

// LoadFile loads a matrix from disk. An empty path loads the embedded
// default matrix.
func LoadFile(path string) (Matrix, error) {
	if path == "" {
		return Load(defaultMatrixYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read matrix file: %w", err)
	}
	return Load(data)
}

// Default returns the embedded baseline matrix. It is compiled in, so a
// parse failure is a programming error.
func Default() Matrix {
	m, err := Load(defaultMatrixYAML)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded matrix invalid: %v", err))
	}
	return m
}
