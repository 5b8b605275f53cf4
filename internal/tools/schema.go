package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateArgs checks args against schema and returns the decoded object.
func validateArgs(schema, args json.RawMessage) (map[string]interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if len(schema) > 0 {
		compiled, err := compileSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("compile schema: %w", err)
		}
		if err := compiled.Validate(decoded); err != nil {
			return nil, err
		}
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return obj, nil
}
