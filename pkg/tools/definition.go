package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolDefinition represents a tool that can be called by the model.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Function    ToolFunc           `json:"-"`
	Tags        []string           `json:"tags,omitempty"`
}

// ToolFunc wraps the executable function with a pre-compiled executor.
type ToolFunc struct {
	Fn       interface{}                                   `json:"-"`
	executor func(context.Context, []byte) (string, error) `json:"-"`
}

// ToolCall represents a request to execute a tool. Arguments is the raw JSON
// the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult represents the outcome of a tool execution. A failing tool is
// reported through Error, never through a raised fault.
type ToolResult struct {
	ID       string        `json:"id"`
	Result   string        `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r ToolResult) IsError() bool {
	return r.Error != ""
}

var (
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc creates a ToolDefinition from a Go function. Supported
// signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//
// where Input is a struct whose JSON schema becomes the tool's parameter
// schema. The name is normalized to snake_case.
func NewToolFromFunc(name, description string, fn interface{}) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}
	if funcType.NumOut() != 2 || !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("function must return (result, error)")
	}

	inputType, wantsCtx, err := inputTypeOf(funcType)
	if err != nil {
		return nil, err
	}

	schema, err := schemaFor(inputType)
	if err != nil {
		return nil, errors.Wrap(err, "generate parameter schema")
	}

	return &ToolDefinition{
		Name:        strcase.ToSnake(name),
		Description: description,
		Parameters:  schema,
		Function: ToolFunc{
			Fn:       fn,
			executor: makeExecutor(fn, inputType, wantsCtx),
		},
	}, nil
}

// Execute invokes the wrapped function with the given JSON arguments and
// renders its result as a string.
func (tf ToolFunc) Execute(ctx context.Context, args []byte) (string, error) {
	if tf.executor == nil {
		return "", errors.New("tool function not properly initialized")
	}
	return tf.executor(ctx, args)
}

func inputTypeOf(funcType reflect.Type) (reflect.Type, bool, error) {
	switch funcType.NumIn() {
	case 1:
		if funcType.In(0) == ctxType {
			return nil, true, nil
		}
		return funcType.In(0), false, nil
	case 2:
		if funcType.In(0) != ctxType {
			return nil, false, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		return funcType.In(1), true, nil
	default:
		return nil, false, errors.New("function must take (Input) or (context.Context, Input)")
	}
}

func schemaFor(inputType reflect.Type) (*jsonschema.Schema, error) {
	if inputType == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	inputInstance := reflect.New(inputType).Elem().Interface()
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(inputInstance)
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema, nil
}

func makeExecutor(fn interface{}, inputType reflect.Type, wantsCtx bool) func(context.Context, []byte) (string, error) {
	funcValue := reflect.ValueOf(fn)

	return func(ctx context.Context, args []byte) (string, error) {
		in := make([]reflect.Value, 0, 2)
		if wantsCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inputType != nil {
			input := reflect.New(inputType).Interface()
			if len(args) == 0 {
				args = []byte("{}")
			}
			if err := json.Unmarshal(args, input); err != nil {
				return "", errors.Wrap(err, "unmarshal arguments")
			}
			in = append(in, reflect.ValueOf(input).Elem())
		}

		results := funcValue.Call(in)
		if errVal := results[1].Interface(); errVal != nil {
			return "", errVal.(error)
		}
		return renderResult(results[0].Interface())
	}
}

func renderResult(result interface{}) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrap(err, "marshal result")
		}
		return string(b), nil
	}
}
