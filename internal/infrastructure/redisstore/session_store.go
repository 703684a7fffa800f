package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
)

// Draft selections are abandoned if the owner never confirms.
const sessionTTL = 24 * time.Hour

// SessionStore keeps per-owner scheduling drafts in Redis. Sessions are
// transient by contract, so an external KV with TTL fits better than the
// posts table.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(ownerID string) string {
	return fmt.Sprintf("publisher:session:%s", ownerID)
}

func (s *SessionStore) Get(ctx context.Context, ownerID string) (*domain.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.OwnerID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, ownerID string) error {
	if err := s.rdb.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
