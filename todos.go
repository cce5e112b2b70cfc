package main

import (
	"bytes"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Todo - Model of a todo item as persisted
type Todo struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id" example:"507f1f77bcf86cd799439011"`
	Title       string             `bson:"title" json:"title" example:"Buy milk"`
	Description string             `bson:"description,omitempty" json:"description,omitempty" example:"Two litres, semi-skimmed"`
	Completed   bool               `bson:"completed" json:"completed" example:"false"`
}

// Field holds a JSON value that may be absent, explicitly null, or present.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON is only called for keys present in the body.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// TodoPayload is the body accepted by create and update.
type TodoPayload struct {
	Title       Field[string] `json:"title" swaggertype:"string" example:"Buy milk"`
	Description Field[string] `json:"description" swaggertype:"string" example:"Two litres, semi-skimmed"`
	Completed   Field[bool]   `json:"completed" swaggertype:"boolean" example:"false"`
}

// NewTodo builds the document inserted by create. Completed defaults to false.
func (p TodoPayload) NewTodo() Todo {
	return Todo{
		Title:       p.Title.Value,
		Description: p.Description.Value,
		Completed:   p.Completed.Value,
	}
}

// TodoPatch lists the fields an update writes. Nil means untouched.
type TodoPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Patch converts the payload into a partial update. An explicit null on
// completed resets it to false.
func (p TodoPayload) Patch() TodoPatch {
	var patch TodoPatch
	if p.Title.Set {
		title := p.Title.Value
		patch.Title = &title
	}
	if p.Description.Set {
		description := p.Description.Value
		patch.Description = &description
	}
	if p.Completed.Set {
		completed := p.Completed.Value
		patch.Completed = &completed
	}
	return patch
}

// Empty reports whether the patch writes nothing.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}
