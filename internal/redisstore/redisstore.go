// Package redisstore keeps the result cache and the polling offset in Redis.
// Result entries are written with a key TTL, so expiry needs no sweep, and
// are taken with GETDEL, which reads and deletes in one atomic command.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

const (
	keyPrefix         = "pdfbot:result:"
	pollingOffsetKey  = "pdfbot:telegram:polling:offset"
	defaultEntryTTL   = 6 * time.Hour
	countScanPageSize = 500
)

// ResultStore implements the services.ResultStore contract on Redis.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a store whose entries expire after ttl.
func New(client *redis.Client, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = defaultEntryTTL
	}
	return &ResultStore{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server answers PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type entry struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func resultKey(chatID int64, fingerprint string) string {
	return keyPrefix + strconv.FormatInt(chatID, 10) + ":" + fingerprint
}

// PutResult stores r and (re)starts its TTL.
func (s *ResultStore) PutResult(ctx context.Context, r domain.CachedResult) error {
	b, err := json.Marshal(entry{Title: r.Title, URL: r.URL, CreatedAt: r.CreatedAt.UTC()})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, resultKey(r.ChatID, r.Fingerprint), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// TakeResult atomically fetches and deletes the entry.
func (s *ResultStore) TakeResult(ctx context.Context, chatID int64, fingerprint string) (domain.CachedResult, bool, error) {
	val, err := s.client.GetDel(ctx, resultKey(chatID, fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CachedResult{}, false, nil
		}
		return domain.CachedResult{}, false, fmt.Errorf("failed to take result: %w", err)
	}
	var e entry
	if err := json.Unmarshal(val, &e); err != nil {
		return domain.CachedResult{}, false, fmt.Errorf("failed to decode result: %w", err)
	}
	return domain.CachedResult{
		ChatID:      chatID,
		Fingerprint: fingerprint,
		Title:       e.Title,
		URL:         e.URL,
		CreatedAt:   e.CreatedAt,
	}, true, nil
}

// DeleteResultsBefore is a no-op: Redis expires keys on its own.
func (s *ResultStore) DeleteResultsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// CountResults counts live entries with SCAN.
func (s *ResultStore) CountResults(ctx context.Context) (int64, error) {
	var (
		n      int64
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", countScanPageSize).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count results: %w", err)
		}
		n += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return n, nil
		}
	}
}

// OffsetStore persists the Telegram long-polling offset across restarts.
type OffsetStore struct {
	client *redis.Client
}

// NewOffsetStore wraps client.
func NewOffsetStore(client *redis.Client) *OffsetStore {
	return &OffsetStore{client: client}
}

// GetOffset returns the last saved offset, or 0 if not found.
func (s *OffsetStore) GetOffset(ctx context.Context) (int64, error) {
	val, err := s.client.Get(ctx, pollingOffsetKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get polling offset: %w", err)
	}
	offset, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse polling offset: %w", err)
	}
	return offset, nil
}

// SaveOffset persists the current offset.
func (s *OffsetStore) SaveOffset(ctx context.Context, offset int64) error {
	if err := s.client.Set(ctx, pollingOffsetKey, strconv.FormatInt(offset, 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to save polling offset: %w", err)
	}
	return nil
}
