// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler in this application sends JSON back to the client.
// Rather than repeating the same three lines (set header, set status,
// encode JSON) in every handler, we centralise them here.
//
// Consistent response shapes also make life easier for API consumers:
// every failure, whatever its cause, is an Envelope.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ─────────────────────────────────────────────────────────────────────────────
// Envelope is the standard shape returned for every error case.
//
// Success responses may return any JSON shape (a person, a list, an id…).
// Error responses always look like:
//
//	{ "code": "Validation Error", "errors": { "lastName": ["field lastName is required"] } }
//
// Errors maps a field path (or a fixed key such as "CouldNotFind") to one
// or more human-readable messages.
// ─────────────────────────────────────────────────────────────────────────────
type Envelope struct {
	Code   string              `json:"code"`
	Errors map[string][]string `json:"errors"`
}

// Envelope codes. Use these instead of raw string literals so a typo is
// caught by the compiler rather than silently sent to clients.
const (
	CodeValidation    = "Validation Error"
	CodeDoesNotExist  = "Does not Exist"
	CodeAlreadyExists = "Already Exists"
	CodeBadRequest    = "Bad Request"
	CodeInternal      = "Internal Server Error"
)

// Fixed keys used in Envelope.Errors.
const (
	KeyCouldNotFind = "CouldNotFind"
	KeyError        = "error"
	KeyBody         = "body"
)

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error under the "error" key.
// Use this for failures that are not tied to a field (empty body, conflicts,
// backend faults).
//
//	response.WriteJSON(w, http.StatusInternalServerError,
//	    response.GeneralError(response.CodeInternal, err))
func GeneralError(code string, err error) Envelope {
	return Envelope{
		Code:   code,
		Errors: map[string][]string{KeyError: {err.Error()}},
	}
}

// NotFound names the identifier that could not be found.
func NotFound(id string) Envelope {
	return Envelope{
		Code: CodeDoesNotExist,
		Errors: map[string][]string{
			KeyCouldNotFind: {fmt.Sprintf("person with id %s does not exist", id)},
		},
	}
}

// FieldErrors builds a validation envelope from an already collected map.
func FieldErrors(fields map[string][]string) Envelope {
	return Envelope{Code: CodeValidation, Errors: fields}
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError converts validator.FieldError values into a validation
// envelope, one entry per field path.
//
// The validator should be built with a tag-name func returning json names
// (see NewValidator) so paths read "lastName", "address.city", "tags[0]"
// rather than Go field names. The root struct name is stripped.
//
// Example output:
//
//	{ "code": "Validation Error",
//	  "errors": { "firstName": ["field firstName is required"],
//	              "lastName":  ["field lastName is required"] } }
//
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Envelope {
	fields := make(map[string][]string, len(errs))

	for _, e := range errs {
		path := fieldPath(e.Namespace())

		var msg string
		switch e.ActualTag() {
		// "required" tag: field was missing or zero-valued
		case "required":
			msg = fmt.Sprintf("field %s is required", path)
		// "min" on a string: too short (min=1 means "must not be empty")
		case "min":
			if e.Param() == "1" {
				msg = fmt.Sprintf("field %s must not be empty", path)
			} else {
				msg = fmt.Sprintf("field %s must be at least %s characters", path, e.Param())
			}
		case "max":
			msg = fmt.Sprintf("field %s must be at most %s characters", path, e.Param())
		case "oneof":
			msg = fmt.Sprintf("field %s must be one of [%s]", path, e.Param())
		// Catch-all for any other validation tag
		default:
			msg = fmt.Sprintf("field %s is invalid", path)
		}

		fields[path] = append(fields[path], msg)
	}

	return FieldErrors(fields)
}

// DecodeError turns a json.Decoder failure into a validation envelope.
// Type mismatches are reported against the offending field; anything
// else (syntax errors, truncated bodies) is reported against "body".
func DecodeError(err error) Envelope {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return FieldErrors(map[string][]string{
			typeErr.Field: {fmt.Sprintf("field %s must be a %s", typeErr.Field, typeErr.Type.String())},
		})
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return FieldErrors(map[string][]string{
			KeyBody: {fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)},
		})
	}

	return FieldErrors(map[string][]string{KeyBody: {err.Error()}})
}

// NewValidator returns a validator that names fields by their json tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// fieldPath drops the root struct name from a validator namespace:
// "CreatePersonRequest.lastName" → "lastName".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
