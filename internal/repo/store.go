package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// Store adapts the repository functions to the service-layer store
// interfaces over one *gorm.DB.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

// GetUser returns the stored user, or zero state when the id is unknown.
func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := GetUser(ctx, s.DB, userID)
	if errors.Is(err, ErrNotFound) {
		return &domain.User{UserID: userID}, nil
	}
	return u, err
}

func (s *Store) RegisterUser(ctx context.Context, userID int64, displayName string) error {
	return RegisterUser(ctx, s.DB, userID, displayName)
}

func (s *Store) UpdateQuota(ctx context.Context, userID int64, count int, lastSearch *time.Time) error {
	return UpdateQuota(ctx, s.DB, userID, count, lastSearch)
}

func (s *Store) TouchCooldown(ctx context.Context, userID int64, at time.Time) error {
	return TouchCooldown(ctx, s.DB, userID, at)
}

func (s *Store) SetSuperUser(ctx context.Context, userID int64, displayName string, super bool) error {
	return SetSuperUser(ctx, s.DB, userID, displayName, super)
}

func (s *Store) ListSuperUsers(ctx context.Context) ([]domain.User, error) {
	return ListSuperUsers(ctx, s.DB)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	return ListUserIDs(ctx, s.DB)
}

func (s *Store) PutResult(ctx context.Context, r domain.CachedResult) error {
	return PutResult(ctx, s.DB, r)
}

func (s *Store) TakeResult(ctx context.Context, chatID int64, fingerprint string) (domain.CachedResult, bool, error) {
	return TakeResult(ctx, s.DB, chatID, fingerprint)
}

func (s *Store) DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return DeleteResultsBefore(ctx, s.DB, cutoff)
}

func (s *Store) CountResults(ctx context.Context) (int64, error) {
	return CountResults(ctx, s.DB)
}

// MarkUpdate reports true the first time updateID is seen.
func (s *Store) MarkUpdate(ctx context.Context, updateID int64, at time.Time) (bool, error) {
	err := CreateProcessedUpdate(ctx, s.DB, updateID, at)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) PurgeUpdatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return PurgeProcessedUpdates(ctx, s.DB, cutoff)
}

func (s *Store) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	return RecordDelivery(ctx, s.DB, d)
}

func (s *Store) CountUsers(ctx context.Context) (total, super int64, err error) {
	return CountUsers(ctx, s.DB)
}

func (s *Store) QuotaUsage(ctx context.Context, since time.Time, limit int) (limited, searches int64, err error) {
	return QuotaUsage(ctx, s.DB, since, limit)
}

func (s *Store) CountDeliveriesSince(ctx context.Context, since time.Time) (int64, error) {
	return CountDeliveriesSince(ctx, s.DB, since)
}
