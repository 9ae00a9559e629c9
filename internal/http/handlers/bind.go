package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSONStrict decodes the request body into out, rejecting any field the
// target struct does not declare. The struct's json tags are the endpoint's
// allow-listed schema; binding tags are enforced afterwards. Responds with
// 400 and returns false on any failure.
func BindJSONStrict(ctx *gin.Context, out interface{}) bool {
	raw, err := io.ReadAll(ctx.Request.Body)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", nil)
		return false
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var body map[string]json.RawMessage

	if err := json.Unmarshal(raw, &body); err != nil {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"json": "invalid_json_syntax"})
		return false
	}

	if unknown := unknownFields(body, out); len(unknown) > 0 {
		quoted := make([]string, 0, len(unknown))

		for _, f := range unknown {
			quoted = append(quoted, "'"+f+"'")
		}

		RespondBadRequest(ctx, fmt.Sprintf("Forbidden fields: %s.", strings.Join(quoted, ", ")), gin.H{"fields": unknown})
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", typeErrorDetails(err, out))
		return false
	}

	if err := binding.Validator.ValidateStruct(out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", validationDetails(err, out))
		return false
	}

	return true
}

// unknownFields returns body keys that have no json-tagged field on out,
// sorted for stable error messages.
func unknownFields(body map[string]json.RawMessage, out interface{}) []string {
	allowed := make(map[string]struct{})

	t := baseStructType(out)

	if t != nil {
		for i := 0; i < t.NumField(); i++ {
			name := jsonNameOf(t.Field(i))

			if name != "" {
				allowed[name] = struct{}{}
			}
		}
	}

	var unknown []string

	for key := range body {
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}

	sort.Strings(unknown)

	return unknown
}

func typeErrorDetails(err error, out interface{}) interface{} {
	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := typeErr.Field

		return gin.H{
			"json": "invalid_json_type",
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
				},
			},
		}
	}

	return gin.H{"reason": err.Error()}
}

func validationDetails(err error, out interface{}) interface{} {
	var validatorErrs validator.ValidationErrors

	if !errors.As(err, &validatorErrs) {
		return gin.H{"reason": err.Error()}
	}

	rootType := baseStructType(out)
	fields := make([]FieldError, 0, len(validatorErrs))

	for _, fe := range validatorErrs {
		field := fe.StructField()

		if rootType != nil {
			if sf, ok := rootType.FieldByName(fe.StructField()); ok {
				if name := jsonNameOf(sf); name != "" {
					field = name
				}
			}
		}

		rule := fe.Tag()
		param := fe.Param()

		fields = append(fields, FieldError{
			Field:   field,
			Rule:    rule,
			Param:   param,
			Message: validationMessage(rule, param),
		})
	}

	return gin.H{"fields": fields}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

func jsonNameOf(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "gt":
		return "must be greater than " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
