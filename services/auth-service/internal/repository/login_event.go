package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
)

// LoginEventRepository appends login attempts to the audit trail.
type LoginEventRepository interface {
	RecordLoginEvent(ctx context.Context, event *model.LoginEvent) error
}

const loginEventCollection = "login_events"

type loginEventMongoRepository struct {
	db *mongo.Database
}

func NewLoginEventMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) LoginEventRepository {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "username", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	}

	if _, err := db.Collection(loginEventCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Warn().Err(err).Msg("failed to create login event indexes")
	}

	return &loginEventMongoRepository{db: db}
}

func (r *loginEventMongoRepository) RecordLoginEvent(ctx context.Context, event *model.LoginEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := r.db.Collection(loginEventCollection).InsertOne(ctx, event)
	if err != nil {
		return err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		event.ID = objectID
	}

	return nil
}
