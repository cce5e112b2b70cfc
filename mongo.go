package main

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// server error code for creating a collection that already exists
const namespaceExistsCode = 48

// ErrTodoNotFound is returned when no document matches the id.
var ErrTodoNotFound = errors.New("todo not found")

// TodoStore is the persistence boundary used by the handlers.
type TodoStore interface {
	Create(ctx context.Context, todo *Todo) error
	List(ctx context.Context) ([]Todo, error)
	Get(ctx context.Context, id string) (*Todo, error)
	Update(ctx context.Context, id string, patch TodoPatch) (*Todo, error)
	Delete(ctx context.Context, id string) error
}

// MongoStore keeps todos in a single MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
	// set when the client could not be created; every call returns it
	err error
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// ConnectMongo creates the process wide client. Failures are logged and the
// returned store answers every call with the error instead of halting startup.
func ConnectMongo(cfg Config) (*mongo.Client, *MongoStore) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Error("Failed to connect to cluster")
		return nil, &MongoStore{err: err}
	}

	// Force a connection to verify our connection string
	if err := client.Ping(ctx, nil); err != nil {
		log.WithError(err).Error("Failed to ping cluster")
	} else {
		log.WithField("database", cfg.Database).Info("Connected to MongoDB!")
	}

	return client, NewMongoStore(client.Database(cfg.Database).Collection(cfg.Collection))
}

// EnsureSchema installs the todo validator on the collection, creating it if needed.
func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	db := s.collection.Database()
	name := s.collection.Name()

	err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(mongoTodoValidator))
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExistsCode {
		return db.RunCommand(ctx, bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: mongoTodoValidator},
		}).Err()
	}
	return err
}

// Create inserts a new todo and sets its ID.
func (s *MongoStore) Create(ctx context.Context, todo *Todo) error {
	if s.err != nil {
		return s.err
	}
	if err := validateTodoDocument(todo); err != nil {
		return err
	}
	todo.ID = primitive.NewObjectID()

	if _, err := s.collection.InsertOne(ctx, todo); err != nil {
		todo.ID = primitive.NilObjectID
		return err
	}
	return nil
}

// List retrieves all todos in store order.
func (s *MongoStore) List(ctx context.Context) ([]Todo, error) {
	if s.err != nil {
		return nil, s.err
	}
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	todos := []Todo{}
	if err := cursor.All(ctx, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Get retrieves a todo by its hex id.
func (s *MongoStore) Get(ctx context.Context, id string) (*Todo, error) {
	if s.err != nil {
		return nil, s.err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrTodoNotFound
	}

	var todo Todo
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&todo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTodoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

// Update sets the patched fields and returns the document after the update.
func (s *MongoStore) Update(ctx context.Context, id string, patch TodoPatch) (*Todo, error) {
	if s.err != nil {
		return nil, s.err
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrTodoNotFound
	}
	if err := validateTodoPatch(patch); err != nil {
		return nil, err
	}

	update := bson.M{
		"$set": patchFields(patch),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Todo
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTodoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a todo by its hex id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrTodoNotFound
	}

	err = s.collection.FindOneAndDelete(ctx, bson.M{"_id": oid}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrTodoNotFound
	}
	return err
}

// disconnect closes the client, bounded by timeout.
func disconnect(client *mongo.Client, timeout time.Duration) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Error("Failed to disconnect from MongoDB")
	}
}
