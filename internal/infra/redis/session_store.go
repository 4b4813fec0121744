package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tweet-quiz-service/internal/domain"
)

// SessionStore keeps the provider session of one device in Redis under
// device:{deviceID}:session. The key expires with the session.
type SessionStore struct {
	client   *redis.Client
	deviceID string
	maxTTL   time.Duration
}

func NewSessionStore(client *redis.Client, deviceID string, maxTTL time.Duration) *SessionStore {
	return &SessionStore{client: client, deviceID: deviceID, maxTTL: maxTTL}
}

func (s *SessionStore) LoadSession(ctx context.Context) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil || session.User.ID == "" {
		// Unreadable sessions count as signed out.
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) SaveSession(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := s.maxTTL
	if !session.ExpiresAt.IsZero() {
		if until := time.Until(session.ExpiresAt); until > 0 && (ttl <= 0 || until < ttl) {
			ttl = until
		}
	}
	if err := s.client.Set(ctx, s.key(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key() string {
	return "device:" + s.deviceID + ":session"
}
