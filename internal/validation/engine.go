// Package validation wraps the draft-7 JSON Schema validator behind the
// small surface the rest of the service needs: a structural check for
// definitions at registration time, and a pure document check that reports
// violations as JSON pointer / reason pairs. The package holds no state;
// identical inputs always produce identical violation sets.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// resourceURL names the in-memory schema resource handed to the compiler.
const resourceURL = "inline://schema.json"

// compile builds a draft-7 validator from a definition, with format
// assertions (date-time and friends) enabled.
func compile(definition json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true
	if err := compiler.AddResource(resourceURL, bytes.NewReader(definition)); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

// CheckDefinition verifies that definition is a structurally valid draft-7
// schema document. It returns a *types.DefinitionError describing the first
// problem found, or nil.
func CheckDefinition(definition json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(definition, &doc); err != nil {
		return &types.DefinitionError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if _, ok := doc.(map[string]any); !ok {
		return &types.DefinitionError{Reason: "schema definition must be a JSON object"}
	}
	if _, err := compile(definition); err != nil {
		return &types.DefinitionError{Reason: err.Error()}
	}
	return nil
}

// Validate checks document against definition and returns the violation
// list; an empty list means valid. A definition that does not compile
// returns a *types.DefinitionError instead.
func Validate(definition, document json.RawMessage) ([]types.Violation, error) {
	schema, err := compile(definition)
	if err != nil {
		return nil, &types.DefinitionError{Reason: err.Error()}
	}

	var doc any
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("%w: document is not valid JSON", types.ErrInvalidArgument)
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	return flatten(ve, nil), nil
}

// flatten walks the cause tree and keeps the leaves, which carry the
// specific keyword failures; interior nodes only restate their children.
func flatten(ve *jsonschema.ValidationError, out []types.Violation) []types.Violation {
	if len(ve.Causes) == 0 {
		path := ve.InstanceLocation
		if path == "" {
			path = "/"
		}
		return append(out, types.Violation{Path: path, Reason: ve.Message})
	}
	for _, cause := range ve.Causes {
		out = flatten(cause, out)
	}
	return out
}
