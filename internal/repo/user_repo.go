// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// Every write is an upsert keyed by user_id that touches only the columns it
// owns, so quota, cooldown and membership updates never overwrite each
// other's fields.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func upsertUser(ctx context.Context, db *gorm.DB, u *domain.User, columns ...string) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
	}).Create(u).Error
}

// RegisterUser records a user on first contact. A non-empty displayName
// only fills a missing stored name, so names set by admins survive.
func RegisterUser(ctx context.Context, db *gorm.DB, userID int64, displayName string) error {
	now := time.Now().UTC()
	u := &domain.User{UserID: userID, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	if displayName == "" {
		return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(u).Error
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Set{{
			Column: clause.Column{Name: "display_name"},
			Value:  gorm.Expr("CASE WHEN users.display_name = '' THEN excluded.display_name ELSE users.display_name END"),
		}},
	}).Create(u).Error
}

// UpdateQuota stores the search counter and window anchor.
func UpdateQuota(ctx context.Context, db *gorm.DB, userID int64, count int, lastSearch *time.Time) error {
	u := &domain.User{UserID: userID, SearchCount: count}
	if lastSearch != nil {
		t := lastSearch.UTC()
		u.LastSearchTime = &t
	}
	return upsertUser(ctx, db, u, "search_count", "last_search_time")
}

// TouchCooldown stores the time of the last accepted delivery request.
func TouchCooldown(ctx context.Context, db *gorm.DB, userID int64, at time.Time) error {
	t := at.UTC()
	return upsertUser(ctx, db, &domain.User{UserID: userID, LastPDFRequest: &t}, "last_pdf_request")
}

// SetSuperUser sets membership. An empty displayName keeps the stored name.
func SetSuperUser(ctx context.Context, db *gorm.DB, userID int64, displayName string, super bool) error {
	u := &domain.User{UserID: userID, DisplayName: displayName, IsSuperUser: super}
	if displayName == "" {
		return upsertUser(ctx, db, u, "is_super_user")
	}
	return upsertUser(ctx, db, u, "is_super_user", "display_name")
}

// ListSuperUsers returns all super users ordered by id.
func ListSuperUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("is_super_user = ?", true).
		Order("user_id ASC").
		Find(&out).Error
	return out, err
}

// ListUserIDs returns every known user id in ascending order.
func ListUserIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Model(&domain.User{}).Order("user_id ASC").Pluck("user_id", &ids).Error
	return ids, err
}
