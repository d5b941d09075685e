package parser

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fieldEntrySchema is the shape every {value, confidence} entry must match.
// Only the value is constrained; an unusable confidence falls back to the default.
const fieldEntrySchema = `{
  "type": "object",
  "properties": {
    "value": {"type": ["string", "number", "null"]}
  }
}`

func compileFieldEntrySchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("field-entry.json", strings.NewReader(fieldEntrySchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("field-entry.json")
}
