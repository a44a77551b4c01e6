// Package services – ResultCache
//
// ResultCache maps short fingerprints carried in button payloads back to the
// title and URL of a search result. Entries are scoped per chat, read once,
// and expire after TTL: stale entries are reported as misses on read and
// removed by Sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

const defaultResultTTL = 6 * time.Hour

// Fingerprint returns the cache key for url: 16 lowercase hex characters of
// its xxhash64. It depends on the URL only.
func Fingerprint(url string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(url))
}

// ResultCache stores search results behind fingerprints.
type ResultCache struct {
	Store ResultStore
	TTL   time.Duration
	Now   func() time.Time
}

// NewResultCache builds a cache; a non-positive ttl defaults to 6h.
func NewResultCache(store ResultStore, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{Store: store, TTL: ttl, Now: time.Now}
}

// Put registers (title, url) for chatID and returns its fingerprint. Putting
// the same url again overwrites the title and refreshes the entry's age.
func (c *ResultCache) Put(ctx context.Context, chatID int64, url, title string) (string, error) {
	fp := Fingerprint(url)
	err := c.Store.PutResult(ctx, domain.CachedResult{
		ChatID:      chatID,
		Fingerprint: fp,
		Title:       title,
		URL:         url,
		CreatedAt:   c.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return fp, nil
}

// Take returns and removes the entry for (chatID, fingerprint). It returns
// ErrCacheMiss when the entry is absent or older than TTL.
func (c *ResultCache) Take(ctx context.Context, chatID int64, fingerprint string) (domain.CachedResult, error) {
	tr := otel.Tracer("services/ResultCache")
	ctx, span := tr.Start(ctx, "Take",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.String("result.fingerprint", fingerprint),
		),
	)
	defer span.End()

	r, ok, err := c.Store.TakeResult(ctx, chatID, fingerprint)
	if err != nil {
		return domain.CachedResult{}, err
	}
	if !ok {
		deliveriesTotal.WithLabelValues("miss").Inc()
		return domain.CachedResult{}, ErrCacheMiss
	}
	if c.Now().Sub(r.CreatedAt) > c.TTL {
		cacheEvictions.WithLabelValues("stale_read").Inc()
		deliveriesTotal.WithLabelValues("miss").Inc()
		return domain.CachedResult{}, ErrCacheMiss
	}
	deliveriesTotal.WithLabelValues("allowed").Inc()
	return r, nil
}

// Sweep deletes every entry older than TTL and returns how many were removed.
func (c *ResultCache) Sweep(ctx context.Context) (int64, error) {
	n, err := c.Store.DeleteResultsBefore(ctx, c.Now().UTC().Add(-c.TTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		cacheEvictions.WithLabelValues("sweep").Add(float64(n))
	}
	return n, nil
}

// RunSweeper calls each sweep func every interval until ctx is done.
// Errors are logged and do not stop the loop.
func RunSweeper(ctx context.Context, interval time.Duration, sweeps ...func(context.Context) (int64, error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, sweep := range sweeps {
				n, err := sweep(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("sweep failed")
					}
					continue
				}
				if n > 0 {
					log.Debug().Int64("removed", n).Msg("sweep removed stale rows")
				}
			}
		}
	}
}
