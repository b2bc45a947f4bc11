package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SessionStore хранит сессии админов под непрозрачными токенами.
type SessionStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewSessionStore(c *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{c: c, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) (string, error) {
	b, err := json.Marshal(sess)
	if err != nil {
		return "", errors.Wrap(err, "marshal session")
	}
	token := uuid.NewString() + uuid.NewString()
	if err := s.c.Set(ctx, sessionKey(token), b, s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "redis set session")
	}
	return token, nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*models.Session, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	b, err := s.c.Get(ctx, sessionKey(token)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get session")
	}
	var sess models.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal session")
	}
	return &sess, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.c.Del(ctx, sessionKey(token)).Err(); err != nil {
		return errors.Wrap(err, "redis del session")
	}
	return nil
}

func sessionKey(token string) string {
	return "session:" + token
}
