package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/payment"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaSinkWritesKeyedMessage(t *testing.T) {
	writer := &mockWriter{}
	sink := &KafkaSink{writer: writer, topic: "payments.completed", logger: zap.NewNop()}

	if err := sink.Write(context.Background(), event("42")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "123456" {
		t.Fatalf("expected key 123456, got %s", msg.Key)
	}
	var decoded payment.CompletedEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("expected JSON value, got %v", err)
	}
	if decoded.EventID != "42" || decoded.TransactionReference != "TX-42" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
	if err := sink.Close(context.Background()); err != nil || !writer.closed {
		t.Fatalf("expected writer to be closed, got %v", err)
	}
}

func TestKafkaSinkWrapsWriteError(t *testing.T) {
	cause := errors.New("leader not available")
	sink := &KafkaSink{writer: &mockWriter{err: cause}, topic: "payments.completed", logger: zap.NewNop()}

	if err := sink.Write(context.Background(), event("1")); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

type mockCollection struct {
	documents []interface{}
	err       error
}

func (m *mockCollection) InsertOne(_ context.Context, document interface{}, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.documents = append(m.documents, document)
	return &mongo.InsertOneResult{}, nil
}

func TestMongoSinkInsertsEvent(t *testing.T) {
	collection := &mockCollection{}
	sink := &MongoSink{collection: collection}

	if err := sink.Write(context.Background(), event("7")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(collection.documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(collection.documents))
	}
	if doc, ok := collection.documents[0].(payment.CompletedEvent); !ok || doc.EventID != "7" {
		t.Fatalf("unexpected document: %+v", collection.documents[0])
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("expected nil error without client, got %v", err)
	}
}

func TestMongoSinkIgnoresDuplicateEvent(t *testing.T) {
	duplicate := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
	sink := &MongoSink{collection: &mockCollection{err: duplicate}}

	if err := sink.Write(context.Background(), event("7")); err != nil {
		t.Fatalf("expected duplicate to be ignored, got %v", err)
	}
}

func TestMongoSinkWrapsOtherErrors(t *testing.T) {
	cause := errors.New("no reachable servers")
	sink := &MongoSink{collection: &mockCollection{err: cause}}

	if err := sink.Write(context.Background(), event("7")); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
