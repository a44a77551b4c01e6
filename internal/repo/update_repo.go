// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-update log used to drop
// webhook redeliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// ErrDuplicate indicates a unique-key violation on insert.
var ErrDuplicate = errors.New("duplicate")

func isDuplicate(err error) bool {
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateProcessedUpdate records updateID. It returns ErrDuplicate when the id
// was already recorded.
func CreateProcessedUpdate(ctx context.Context, db *gorm.DB, updateID int64, at time.Time) error {
	rec := &domain.ProcessedUpdate{UpdateID: updateID, CreatedAt: at.UTC()}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeProcessedUpdates deletes records older than cutoff.
func PurgeProcessedUpdates(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
