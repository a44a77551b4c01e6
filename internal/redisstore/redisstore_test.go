package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestResultStore_PutTakeOnce(t *testing.T) {
	client := setupTestRedis(t)
	s := New(client, time.Minute)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	r := domain.CachedResult{ChatID: 7, Fingerprint: "0011223344556677", Title: "T", URL: "https://x/t.pdf", CreatedAt: now}
	if err := s.PutResult(ctx, r); err != nil {
		t.Fatalf("PutResult: %v", err)
	}
	if ttl := client.TTL(ctx, resultKey(7, r.Fingerprint)).Val(); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL %v", ttl)
	}
	if n, err := s.CountResults(ctx); err != nil || n != 1 {
		t.Fatalf("CountResults = %d, %v", n, err)
	}

	got, ok, err := s.TakeResult(ctx, 7, r.Fingerprint)
	if err != nil || !ok {
		t.Fatalf("TakeResult = %v, %v", ok, err)
	}
	if got.Title != "T" || got.URL != r.URL || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if _, ok, err := s.TakeResult(ctx, 7, r.Fingerprint); ok || err != nil {
		t.Fatalf("second take = %v, %v; want miss", ok, err)
	}
}

func TestResultStore_ConcurrentTakeSingleWinner(t *testing.T) {
	client := setupTestRedis(t)
	s := New(client, time.Minute)
	ctx := context.Background()
	_ = s.PutResult(ctx, domain.CachedResult{ChatID: 1, Fingerprint: "ffffffffffffffff", Title: "t", URL: "u", CreatedAt: time.Now()})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.TakeResult(ctx, 1, "ffffffffffffffff"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d; want 1", wins)
	}
}

func TestOffsetStore(t *testing.T) {
	client := setupTestRedis(t)
	s := NewOffsetStore(client)
	ctx := context.Background()

	if off, err := s.GetOffset(ctx); err != nil || off != 0 {
		t.Fatalf("initial offset = %d, %v", off, err)
	}
	if err := s.SaveOffset(ctx, 12345); err != nil {
		t.Fatalf("SaveOffset: %v", err)
	}
	if off, _ := s.GetOffset(ctx); off != 12345 {
		t.Fatalf("offset = %d; want 12345", off)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "://nope"); err == nil {
		t.Fatalf("expected parse error")
	}
}
