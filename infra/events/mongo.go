package events

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/radlee/payments-api/domain/payment"
)

type insertOner interface {
	InsertOne(ctx context.Context, document interface{}, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// MongoSink journals completed payments, one document per event id.
type MongoSink struct {
	collection insertOner
	client     *mongo.Client
}

func NewMongoSink(uri, database, collection string) (*MongoSink, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return &MongoSink{
		collection: client.Database(database).Collection(collection),
		client:     client,
	}, nil
}

// Write is idempotent on EventID: a redelivered event is not an error.
func (s *MongoSink) Write(ctx context.Context, event payment.CompletedEvent) error {
	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to journal payment event: %w", err)
	}
	return nil
}

// Ping reports whether the journal database is reachable.
func (s *MongoSink) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, nil)
}

func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
