// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for CachedResult.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// PutResult inserts or replaces the entry for (chat_id, fingerprint).
func PutResult(ctx context.Context, db *gorm.DB, r domain.CachedResult) error {
	r.CreatedAt = r.CreatedAt.UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "url", "created_at"}),
	}).Create(&r).Error
}

// TakeResult deletes the entry and returns it in a single
// DELETE ... RETURNING statement. Of concurrent takes for one key exactly
// one sees the row; the others get ok=false and no error.
func TakeResult(ctx context.Context, db *gorm.DB, chatID int64, fingerprint string) (domain.CachedResult, bool, error) {
	var rows []domain.CachedResult
	err := db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("chat_id = ? AND fingerprint = ?", chatID, fingerprint).
		Delete(&rows).Error
	if err != nil {
		return domain.CachedResult{}, false, err
	}
	if len(rows) == 0 {
		return domain.CachedResult{}, false, nil
	}
	return rows[0], true, nil
}

// DeleteResultsBefore removes entries created before cutoff.
func DeleteResultsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&domain.CachedResult{})
	return res.RowsAffected, res.Error
}

// CountResults returns the number of pending entries.
func CountResults(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.CachedResult{}).Count(&n).Error
	return n, err
}
