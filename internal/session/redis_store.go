package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	draftPrefix   = "draft:"
	revokedPrefix = "revoked:"
)

// RedisStore keeps drafts and token revocations in Redis with TTLs.
type RedisStore struct {
	client   *redis.Client
	draftTTL time.Duration
}

func NewRedisStore(redisURL string, draftTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, draftTTL), nil
}

func NewRedisStoreWithClient(client *redis.Client, draftTTL time.Duration) *RedisStore {
	if draftTTL <= 0 {
		draftTTL = 24 * time.Hour
	}
	return &RedisStore{client: client, draftTTL: draftTTL}
}

// SaveDraft stores the draft and restarts its TTL.
func (s *RedisStore) SaveDraft(ctx context.Context, draft Draft) error {
	if draft.SavedAt.IsZero() {
		draft.SavedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, draftPrefix+draft.NoteID, payload, s.draftTTL).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadDraft(ctx context.Context, noteID string) (Draft, error) {
	payload, err := s.client.Get(ctx, draftPrefix+noteID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNoDraft
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

func (s *RedisStore) DeleteDraft(ctx context.Context, noteID string) error {
	if err := s.client.Del(ctx, draftPrefix+noteID).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// RevokeToken blocks an access token id until it would have expired anyway.
func (s *RedisStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
