package services

import (
	"context"
	"time"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// UserStore persists per-user quota, cooldown and super-user state.
//
// GetUser returns a zero-state user (not yet persisted) when the id is
// unknown. Update methods upsert, so callers never need to create rows first.
// RegisterUser never replaces a stored display name.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	RegisterUser(ctx context.Context, userID int64, displayName string) error
	UpdateQuota(ctx context.Context, userID int64, count int, lastSearch *time.Time) error
	TouchCooldown(ctx context.Context, userID int64, at time.Time) error
	SetSuperUser(ctx context.Context, userID int64, displayName string, super bool) error
	ListSuperUsers(ctx context.Context) ([]domain.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// ResultStore holds the ephemeral fingerprint -> result mapping.
//
// TakeResult must read and delete atomically: of two concurrent takes for
// the same key at most one reports ok.
type ResultStore interface {
	PutResult(ctx context.Context, r domain.CachedResult) error
	TakeResult(ctx context.Context, chatID int64, fingerprint string) (domain.CachedResult, bool, error)
	DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountResults(ctx context.Context) (int64, error)
}

// UpdateLog remembers processed Telegram update ids.
type UpdateLog interface {
	// MarkUpdate records id and reports whether it was seen for the first time.
	MarkUpdate(ctx context.Context, updateID int64, at time.Time) (bool, error)
	PurgeUpdatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UsageStats is the aggregate snapshot returned by AdminService.Stats.
type UsageStats struct {
	KnownUsers       int64
	SuperUsers       int64
	RateLimited      int64
	ActiveSearches   int64
	PendingResults   int64
	DeliveriesLast24 int64
}

// StatsStore records deliveries and computes usage aggregates.
type StatsStore interface {
	RecordDelivery(ctx context.Context, d domain.Delivery) error
	CountUsers(ctx context.Context) (total, super int64, err error)
	// QuotaUsage reports users at or over limit and the sum of searches
	// among users whose window started after since.
	QuotaUsage(ctx context.Context, since time.Time, limit int) (limited, searches int64, err error)
	CountDeliveriesSince(ctx context.Context, since time.Time) (int64, error)
}
