package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/chathub/internal/models"
)

// StatusStore persists client status-check pings.
type StatusStore struct {
	collection *mongo.Collection
}

func NewStatusStore(m *Mongo) *StatusStore {
	return &StatusStore{collection: m.StatusChecks}
}

func (s *StatusStore) Create(ctx context.Context, check models.StatusCheck) error {
	if _, err := s.collection.InsertOne(ctx, check); err != nil {
		return fmt.Errorf("db: insert status check: %w", err)
	}
	return nil
}

func (s *StatusStore) List(ctx context.Context) ([]models.StatusCheck, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetLimit(listLimit))
	if err != nil {
		return nil, fmt.Errorf("db: list status checks: %w", err)
	}
	defer cursor.Close(ctx)

	checks := make([]models.StatusCheck, 0)
	if err := cursor.All(ctx, &checks); err != nil {
		return nil, fmt.Errorf("db: decode status checks: %w", err)
	}

	return checks, nil
}
