// Package validation decodes and validates chat request bodies and estimates
// prompt sizes.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/parley/server/processing"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// chatRequestBody mirrors processing.ChatRequest with pointer fields, so a
// missing field can be told apart from an empty string.
type chatRequestBody struct {
	Language     *string `json:"language" validate:"required"`
	FreeformText *string `json:"freeform_text" validate:"required"`
}

// FieldError describes one field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// MalformedError means the body is not a JSON object.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return "Invalid request body: " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// SchemaError lists the fields that are missing or have the wrong type.
type SchemaError struct {
	Fields []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "Request validation failed: " + strings.Join(parts, "; ")
}

// DecodeChatRequest reads a chat body from r. Unparseable input yields a
// *MalformedError; missing, null or non-string fields yield a *SchemaError.
// Unknown fields are ignored.
func DecodeChatRequest(r io.Reader) (processing.ChatRequest, error) {
	var body chatRequestBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return processing.ChatRequest{}, &SchemaError{Fields: []FieldError{{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("expected %s, got %s", typeErr.Type.Kind(), typeErr.Value),
				Code:    "type_error",
			}}}
		}
		return processing.ChatRequest{}, &MalformedError{Err: err}
	}

	if err := validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return processing.ChatRequest{}, fmt.Errorf("validate chat request: %w", err)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("field '%s' is %s", fe.Field(), fe.Tag()),
				Code:    fe.Tag() + "_validation_failed",
			})
		}
		return processing.ChatRequest{}, &SchemaError{Fields: fields}
	}

	return processing.ChatRequest{
		Language:     *body.Language,
		FreeformText: *body.FreeformText,
	}, nil
}
