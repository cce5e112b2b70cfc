package main

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"go.mongodb.org/mongo-driver/bson"
)

const todoSchemaJSON = `{
	"type": "object",
	"required": ["title", "completed"],
	"properties": {
		"id": {"type": "string"},
		"title": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"completed": {"type": "boolean"}
	}
}`

// Same constraints without "required", for $set documents.
const todoPatchSchemaJSON = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"completed": {"type": "boolean"}
	}
}`

var (
	todoSchema      = jsonschema.MustCompileString("todo.schema.json", todoSchemaJSON)
	todoPatchSchema = jsonschema.MustCompileString("todo-patch.schema.json", todoPatchSchemaJSON)
)

// mongoTodoValidator is the server side copy of todoSchema, installed on the collection.
var mongoTodoValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"title", "completed"},
		"properties": bson.M{
			"title":       bson.M{"bsonType": "string", "minLength": 3},
			"description": bson.M{"bsonType": "string"},
			"completed":   bson.M{"bsonType": "bool"},
		},
	},
}

// SchemaError is returned when a document breaks the entity schema at write time.
type SchemaError struct {
	Causes []string
}

func (e *SchemaError) Error() string {
	return "Todo validation failed: " + strings.Join(e.Causes, ", ")
}

// validateTodoDocument checks a document about to be inserted.
func validateTodoDocument(todo *Todo) error {
	return validateAgainst(todoSchema, todo)
}

// validateTodoPatch checks the fields an update is about to set.
func validateTodoPatch(patch TodoPatch) error {
	return validateAgainst(todoPatchSchema, patchFields(patch))
}

func validateAgainst(schema *jsonschema.Schema, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal todo for validation: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal todo for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		schemaErr := &SchemaError{}
		collectSchemaCauses(schemaErr, ve)
		return schemaErr
	}
	return nil
}

func collectSchemaCauses(result *SchemaError, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		path := strings.TrimPrefix(err.InstanceLocation, "/")
		if path == "" {
			result.Causes = append(result.Causes, err.Message)
			return
		}
		result.Causes = append(result.Causes, path+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaCauses(result, cause)
	}
}

// patchFields maps a patch to the document keys it sets.
func patchFields(patch TodoPatch) map[string]interface{} {
	fields := make(map[string]interface{}, 3)
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Completed != nil {
		fields["completed"] = *patch.Completed
	}
	return fields
}
