package main

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError is one failed rule, reported back in a 400 response.
type FieldError struct {
	Field   string `json:"field" example:"title"`
	Message string `json:"message" example:"Title must be at least 3 characters"`
}

type fieldRule struct {
	field string
	// optional rules are skipped when the field is absent from the body
	optional bool
	tag      string
	message  string
}

var createRules = []fieldRule{
	{field: "title", tag: "required", message: "Title is required"},
	{field: "title", tag: "min=3", message: "Title must be at least 3 characters"},
	{field: "description", optional: true, tag: "min=5", message: "Description should be at least 5 characters"},
}

var updateRules = []fieldRule{
	{field: "title", optional: true, tag: "min=3", message: "Title must be at least 3 characters"},
	{field: "description", optional: true, tag: "min=5", message: "Description should be at least 5 characters"},
}

func (p TodoPayload) stringField(name string) Field[string] {
	switch name {
	case "title":
		return p.Title
	case "description":
		return p.Description
	}
	return Field[string]{}
}

// check applies rules in order and returns every violation.
func check(p TodoPayload, rules []fieldRule) []FieldError {
	var violations []FieldError
	for _, rule := range rules {
		field := p.stringField(rule.field)
		if rule.optional && !field.Set {
			continue
		}
		// null is checked as the empty string
		if err := validate.Var(field.Value, rule.tag); err != nil {
			violations = append(violations, FieldError{Field: rule.field, Message: rule.message})
		}
	}
	return violations
}

// ValidateCreate checks a create body.
func ValidateCreate(p TodoPayload) []FieldError {
	return check(p, createRules)
}

// ValidateUpdate checks an update body. Title is optional here.
func ValidateUpdate(p TodoPayload) []FieldError {
	return check(p, updateRules)
}
