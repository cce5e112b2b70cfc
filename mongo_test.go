package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func todoDoc(id primitive.ObjectID, title string, completed bool) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: title},
		{Key: "completed", Value: completed},
	}
}

func TestMongoStore_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns id", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		todo := &Todo{Title: "Buy milk"}
		if err := store.Create(context.Background(), todo); err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if todo.ID.IsZero() {
			mt.Error("expected an id to be assigned")
		}
	})

	mt.Run("schema violation never reaches the server", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)

		err := store.Create(context.Background(), &Todo{Title: "ab"})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			mt.Fatalf("expected *SchemaError, got %v", err)
		}
	})

	mt.Run("write error", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    121,
			Message: "Document failed validation",
		}))

		todo := &Todo{Title: "Buy milk"}
		err := store.Create(context.Background(), todo)
		if err == nil || !strings.Contains(err.Error(), "Document failed validation") {
			mt.Fatalf("expected write error, got %v", err)
		}
		if !todo.ID.IsZero() {
			mt.Error("expected id to be cleared on failure")
		}
	})
}

func TestMongoStore_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns documents", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			todoDoc(first, "Buy milk", false),
			todoDoc(second, "Walk dog", true),
		))

		todos, err := store.List(context.Background())
		if err != nil {
			mt.Fatalf("List: %v", err)
		}
		if len(todos) != 2 || todos[0].ID != first || !todos[1].Completed {
			mt.Errorf("unexpected todos %+v", todos)
		}
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		todos, err := store.List(context.Background())
		if err != nil {
			mt.Fatalf("List: %v", err)
		}
		if todos == nil || len(todos) != 0 {
			mt.Errorf("expected an empty non-nil slice, got %#v", todos)
		}
	})

	mt.Run("command error", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		if _, err := store.List(context.Background()); err == nil || !strings.Contains(err.Error(), "not authorized") {
			mt.Errorf("expected command error, got %v", err)
		}
	})
}

func TestMongoStore_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			todoDoc(id, "Buy milk", false),
		))

		todo, err := store.Get(context.Background(), id.Hex())
		if err != nil {
			mt.Fatalf("Get: %v", err)
		}
		if todo.ID != id || todo.Title != "Buy milk" {
			mt.Errorf("unexpected todo %+v", todo)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		if _, err := store.Get(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, ErrTodoNotFound) {
			mt.Errorf("expected ErrTodoNotFound, got %v", err)
		}
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)

		if _, err := store.Get(context.Background(), "123"); !errors.Is(err, ErrTodoNotFound) {
			mt.Errorf("expected ErrTodoNotFound, got %v", err)
		}
	})
}

func TestMongoStore_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns document after update", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: todoDoc(id, "Buy milk", true),
		}))

		completed := true
		todo, err := store.Update(context.Background(), id.Hex(), TodoPatch{Completed: &completed})
		if err != nil {
			mt.Fatalf("Update: %v", err)
		}
		if todo.Title != "Buy milk" || !todo.Completed {
			mt.Errorf("unexpected todo %+v", todo)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		completed := true
		_, err := store.Update(context.Background(), primitive.NewObjectID().Hex(), TodoPatch{Completed: &completed})
		if !errors.Is(err, ErrTodoNotFound) {
			mt.Errorf("expected ErrTodoNotFound, got %v", err)
		}
	})

	mt.Run("empty patch reads the document", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			todoDoc(id, "Buy milk", false),
		))

		todo, err := store.Update(context.Background(), id.Hex(), TodoPatch{})
		if err != nil {
			mt.Fatalf("Update: %v", err)
		}
		if todo.ID != id {
			mt.Errorf("unexpected todo %+v", todo)
		}
	})

	mt.Run("schema violation", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)

		short := "ab"
		_, err := store.Update(context.Background(), primitive.NewObjectID().Hex(), TodoPatch{Title: &short})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			mt.Errorf("expected *SchemaError, got %v", err)
		}
	})
}

func TestMongoStore_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("removes document", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: todoDoc(id, "Buy milk", false),
		}))

		if err := store.Delete(context.Background(), id.Hex()); err != nil {
			mt.Errorf("Delete: %v", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := store.Delete(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, ErrTodoNotFound) {
			mt.Errorf("expected ErrTodoNotFound, got %v", err)
		}
	})
}

func TestMongoStore_EnsureSchema(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates collection", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := store.EnsureSchema(context.Background()); err != nil {
			mt.Errorf("EnsureSchema: %v", err)
		}
	})

	mt.Run("modifies existing collection", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    namespaceExistsCode,
				Name:    "NamespaceExists",
				Message: "Collection already exists",
			}),
			mtest.CreateSuccessResponse(),
		)

		if err := store.EnsureSchema(context.Background()); err != nil {
			mt.Errorf("EnsureSchema: %v", err)
		}
	})
}

func TestMongoStore_Disconnected(t *testing.T) {
	connErr := errors.New("error parsing uri")
	store := &MongoStore{err: connErr}
	ctx := context.Background()

	if err := store.Create(ctx, &Todo{Title: "Buy milk"}); !errors.Is(err, connErr) {
		t.Errorf("Create: expected connection error, got %v", err)
	}
	if _, err := store.List(ctx); !errors.Is(err, connErr) {
		t.Errorf("List: expected connection error, got %v", err)
	}
	if _, err := store.Get(ctx, primitive.NewObjectID().Hex()); !errors.Is(err, connErr) {
		t.Errorf("Get: expected connection error, got %v", err)
	}
	if _, err := store.Update(ctx, primitive.NewObjectID().Hex(), TodoPatch{}); !errors.Is(err, connErr) {
		t.Errorf("Update: expected connection error, got %v", err)
	}
	if err := store.Delete(ctx, primitive.NewObjectID().Hex()); !errors.Is(err, connErr) {
		t.Errorf("Delete: expected connection error, got %v", err)
	}
	if err := store.EnsureSchema(ctx); !errors.Is(err, connErr) {
		t.Errorf("EnsureSchema: expected connection error, got %v", err)
	}
}

func TestConnectMongo_BadURI(t *testing.T) {
	cfg := Config{MongoURI: "not-a-uri", Database: "test", Collection: "todos", ConnectTimeout: time.Second}

	client, store := ConnectMongo(cfg)

	if client != nil {
		t.Error("expected no client for an unparseable URI")
	}
	if _, err := store.List(context.Background()); err == nil {
		t.Error("expected the store to report the connection error")
	}
}
