package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
)

const keyPrefix = "typing:"

// TypingRepository implements repository.TypingRepository using Redis. Each
// signal is a key with the TTL baked in, so the store self-expires; List
// still filters by timestamp so a lagging expiry can never surface a stale
// signal.
type TypingRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTypingRepository creates a new Redis-backed typing repository.
func NewTypingRepository(client *redis.Client) *TypingRepository {
	return &TypingRepository{
		client: client,
		ttl:    domain.TypingTTL,
	}
}

func typingKey(chatID, subjectID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, chatID, subjectID)
}

// Set upserts the typing signal with a fresh timestamp and TTL.
func (r *TypingRepository) Set(ctx context.Context, chatID, subjectID string) error {
	key := typingKey(chatID, subjectID)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := r.client.Set(ctx, key, now, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set typing: %w", err)
	}

	return nil
}

// Clear removes the typing signal. Clearing an absent signal is a no-op.
func (r *TypingRepository) Clear(ctx context.Context, chatID, subjectID string) error {
	if err := r.client.Del(ctx, typingKey(chatID, subjectID)).Err(); err != nil {
		return fmt.Errorf("redis del typing: %w", err)
	}

	return nil
}

// List returns live typing signals for the chat.
func (r *TypingRepository) List(ctx context.Context, chatID string) ([]domain.TypingStatus, error) {
	keys, err := r.scanKeys(ctx, keyPrefix+chatID+":*")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	statuses := make([]domain.TypingStatus, 0, len(keys))
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Expired between SCAN and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get typing: %w", err)
		}

		updated, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return nil, fmt.Errorf("parse typing timestamp: %w", err)
		}

		status := domain.TypingStatus{
			ChatID:      chatID,
			SubjectID:   key[len(keyPrefix+chatID+":"):],
			LastUpdated: updated,
		}
		if status.Stale(now) {
			continue
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// ClearChat removes all typing signals for the chat, used by cascading chat
// deletion.
func (r *TypingRepository) ClearChat(ctx context.Context, chatID string) error {
	keys, err := r.scanKeys(ctx, keyPrefix+chatID+":*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del chat typing: %w", err)
	}

	return nil
}

func (r *TypingRepository) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan typing keys: %w", err)
	}

	return keys, nil
}
