// Package rediscursor keeps the message-sync cursor and dedup keys in
// Redis so interrupted syncs resume instead of skipping.
package rediscursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// seen keys outlive any realistic re-poll window; the cursor itself never
// expires.
const seenTTL = 90 * 24 * time.Hour

// Store implements the cursor interface on go-redis.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New parses redisURL, verifies connectivity and returns the store.
func New(ctx context.Context, redisURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if prefix == "" {
		prefix = "jobtide"
	}
	return &Store{rdb: client, prefix: prefix}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) LastCursor(ctx context.Context, account string) (string, error) {
	cursor, err := s.rdb.Get(ctx, s.cursorKey(account)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sync cursor: %w", err)
	}
	return cursor, nil
}

func (s *Store) SetCursor(ctx context.Context, account, cursor string) error {
	if err := s.rdb.Set(ctx, s.cursorKey(account), cursor, 0).Err(); err != nil {
		return fmt.Errorf("writing sync cursor: %w", err)
	}
	return nil
}

func (s *Store) SeenMessage(ctx context.Context, messageID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.seenKey(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking message dedup key: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkMessage(ctx context.Context, messageID string) error {
	if err := s.rdb.Set(ctx, s.seenKey(messageID), "1", seenTTL).Err(); err != nil {
		return fmt.Errorf("writing message dedup key: %w", err)
	}
	return nil
}

func (s *Store) cursorKey(account string) string {
	return fmt.Sprintf("%s:sync:cursor:%s", s.prefix, account)
}

func (s *Store) seenKey(messageID string) string {
	return fmt.Sprintf("%s:sync:seen:%s", s.prefix, messageID)
}
