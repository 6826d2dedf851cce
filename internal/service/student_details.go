package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/noah-isme/tutorlink-api/internal/errdefs"
)

const studentDetailsSchemaURL = "https://tutorlink.local/schemas/student_details.json"

const studentDetailsSchemaJSON = `{
  "type": "object",
  "maxProperties": 20,
  "properties": {
    "name": {"type": "string", "maxLength": 120},
    "age": {"type": "integer", "minimum": 3, "maximum": 100},
    "gender": {"enum": ["Male", "Female", "Other"]},
    "institution": {"type": "string", "maxLength": 255},
    "medium": {"type": "string", "maxLength": 64},
    "number_of_students": {"type": "integer", "minimum": 1, "maximum": 20},
    "notes": {"type": "string", "maxLength": 1000}
  },
  "additionalProperties": {"type": ["string", "number", "boolean"]}
}`

var (
	studentDetailsOnce   sync.Once
	studentDetailsSchema *jsonschema.Schema
	studentDetailsErr    error
)

func compiledStudentDetailsSchema() (*jsonschema.Schema, error) {
	studentDetailsOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(studentDetailsSchemaURL, strings.NewReader(studentDetailsSchemaJSON)); err != nil {
			studentDetailsErr = err
			return
		}
		studentDetailsSchema, studentDetailsErr = compiler.Compile(studentDetailsSchemaURL)
	})
	return studentDetailsSchema, studentDetailsErr
}

// encodeStudentDetails validates the free-form details object and returns its
// stored JSON form. A nil map encodes to nil.
func encodeStudentDetails(details map[string]interface{}) (datatypes.JSON, error) {
	if details == nil {
		return nil, nil
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return nil, errdefs.New(errdefs.ErrValidation, "student_details must be a JSON object")
	}

	schema, err := compiledStudentDetailsSchema()
	if err != nil {
		return nil, fmt.Errorf("compile student details schema: %w", err)
	}

	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return nil, errdefs.New(errdefs.ErrValidation, "student_details must be a JSON object")
	}

	if err := schema.Validate(document); err != nil {
		return nil, errdefs.Newf(errdefs.ErrValidation, "invalid student_details: %s", validationSummary(err))
	}

	return datatypes.JSON(raw), nil
}

func validationSummary(err error) string {
	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		leaf := validationErr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		return fmt.Sprintf("%s %s", location, leaf.Message)
	}
	return err.Error()
}
