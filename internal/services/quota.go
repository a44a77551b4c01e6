// Package services – QuotaTracker
//
// QuotaTracker enforces the per-user search allowance: regular users get
// Limit searches per Window, anchored at the most recent consumed search.
// The window resets lazily the first time a check observes that it elapsed.
// Super and admin tiers are never counted.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

const (
	defaultSearchLimit  = 2
	defaultSearchWindow = 2 * time.Hour
)

// QuotaTracker decides whether a user may run another search.
type QuotaTracker struct {
	Store  UserStore
	Limit  int
	Window time.Duration
	Now    func() time.Time

	locks *KeyLock
}

// NewQuotaTracker builds a tracker; non-positive limit or window fall back to
// 2 searches per 2 hours.
func NewQuotaTracker(store UserStore, limit int, window time.Duration) *QuotaTracker {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if window <= 0 {
		window = defaultSearchWindow
	}
	return &QuotaTracker{Store: store, Limit: limit, Window: window, Now: time.Now, locks: NewKeyLock()}
}

// CheckAndConsume returns nil when the search may proceed (and has been
// counted), or a *QuotaExceededError carrying the time until reset.
func (q *QuotaTracker) CheckAndConsume(ctx context.Context, userID int64, tier domain.Tier) error {
	tr := otel.Tracer("services/QuotaTracker")
	ctx, span := tr.Start(ctx, "CheckAndConsume",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("user.tier", tier.String()),
		),
	)
	defer span.End()

	if tier.Unlimited() {
		searchesTotal.WithLabelValues("unlimited").Inc()
		return nil
	}

	unlock := q.locks.Lock(userID)
	defer unlock()

	u, err := q.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	now := q.Now()
	count, anchor := u.SearchCount, u.LastSearchTime

	if anchor != nil && now.Sub(*anchor) > q.Window {
		count, anchor = 0, nil
	}

	if count >= q.Limit {
		if anchor != nil {
			retry := q.Window - now.Sub(*anchor)
			if retry < 0 {
				retry = 0
			}
			searchesTotal.WithLabelValues("denied").Inc()
			span.SetAttributes(attribute.Bool("quota.denied", true))
			return &QuotaExceededError{RetryAfter: retry}
		}
		// Count at the limit without an anchor cannot expire on its own.
		log.Warn().Int64("user_id", userID).Int("search_count", count).Msg("quota state without anchor, reinitializing")
		count = 0
	}

	count++
	if err := q.Store.UpdateQuota(ctx, userID, count, &now); err != nil {
		return err
	}
	searchesTotal.WithLabelValues("allowed").Inc()
	return nil
}
