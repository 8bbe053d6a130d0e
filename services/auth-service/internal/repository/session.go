package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
)

// SessionRepository defines the session store operations.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

const sessionKeyPrefix = "session:"

type sessionRedisRepository struct {
	client redis.Cmdable
}

func NewSessionRedisRepository(client redis.Cmdable) SessionRepository {
	return &sessionRedisRepository{client: client}
}

func (r *sessionRedisRepository) CreateSession(ctx context.Context, session *model.Session, ttl time.Duration) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return r.client.Set(ctx, sessionKeyPrefix+session.ID, data, ttl).Err()
}

func (r *sessionRedisRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes the session. Deleting an absent session is not an error.
func (r *sessionRedisRepository) DeleteSession(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKeyPrefix+id).Err()
}
