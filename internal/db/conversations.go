package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/chathub/internal/models"
)

var (
	ErrNotFound    = errors.New("db: conversation not found")
	ErrDuplicateID = errors.New("db: conversation id already exists")
)

// listLimit caps unbounded collection scans on the list endpoints.
const listLimit = 1000

// ConversationStore provides durable CRUD over conversation documents,
// keyed by the application-level conversation id.
type ConversationStore struct {
	collection *mongo.Collection
}

func NewConversationStore(m *Mongo) *ConversationStore {
	return &ConversationStore{collection: m.Conversations}
}

func (s *ConversationStore) Create(ctx context.Context, conv models.Conversation) error {
	if _, err := s.collection.InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("db: insert conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db: fetch conversation: %w", err)
	}
	return &conv, nil
}

// ListAll returns every conversation ordered most recently active first.
func (s *ConversationStore) ListAll(ctx context.Context) ([]models.Conversation, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(listLimit)

	cursor, err := s.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("db: list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := make([]models.Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("db: decode conversations: %w", err)
	}

	return conversations, nil
}

// AppendMessage pushes message onto the conversation's message sequence and
// advances updated_at in the same single-document update, so the two can
// never diverge.
func (s *ConversationStore) AppendMessage(ctx context.Context, id string, message models.ChatMessage) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"messages": message},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("db: append message: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTitle updates the title and updated_at atomically.
func (s *ConversationStore) SetTitle(ctx context.Context, id, title string) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"title": title, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("db: set title: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the conversation and all its messages as one unit.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("db: delete conversation: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
