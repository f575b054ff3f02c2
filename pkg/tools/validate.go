package tools

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ArgumentErrorKind classifies why a tool call's arguments were rejected.
type ArgumentErrorKind string

const (
	ArgumentErrorMissingField ArgumentErrorKind = "missing-field"
	ArgumentErrorTypeMismatch ArgumentErrorKind = "type-mismatch"
)

// ArgumentError reports an argument validation failure. It is returned
// before any side-effecting call is made: invalid arguments never reach a
// tool's executor.
type ArgumentError struct {
	Kind    ArgumentErrorKind
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments [%s] %s: %s", e.Kind, e.Field, e.Message)
}

// ValidateArguments checks that the raw JSON arguments satisfy the tool's
// parameter schema: required parameters present, values type-compatible.
func ValidateArguments(def *ToolDefinition, args []byte) error {
	if def == nil {
		return errors.New("tool definition is nil")
	}
	if def.Parameters == nil {
		return nil
	}

	schemaJSON, err := json.Marshal(def.Parameters)
	if err != nil {
		return errors.Wrap(err, "marshal parameter schema")
	}
	if len(args) == 0 {
		args = []byte("{}")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ArgumentError{
			Kind:    ArgumentErrorTypeMismatch,
			Message: err.Error(),
		}
	}
	if result.Valid() {
		return nil
	}

	// Report the first failure; the model only gets one error message per
	// call anyway.
	first := result.Errors()[0]
	kind := ArgumentErrorTypeMismatch
	field := first.Field()
	if first.Type() == "required" {
		kind = ArgumentErrorMissingField
		if prop, ok := first.Details()["property"].(string); ok {
			field = prop
		}
	}
	return &ArgumentError{
		Kind:    kind,
		Field:   field,
		Message: first.Description(),
	}
}
