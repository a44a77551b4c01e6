// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the delivery log and the aggregate
// queries behind the admin statistics command.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
)

// RecordDelivery appends a delivery row.
func RecordDelivery(ctx context.Context, db *gorm.DB, d domain.Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return db.WithContext(ctx).Create(&d).Error
}

// CountUsers returns the number of known users and of super users.
func CountUsers(ctx context.Context, db *gorm.DB) (total, super int64, err error) {
	q := db.WithContext(ctx).Model(&domain.User{})
	if err = q.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = db.WithContext(ctx).Model(&domain.User{}).Where("is_super_user = ?", true).Count(&super).Error
	return total, super, err
}

// QuotaUsage counts users whose window started after since and who are at
// or over limit, and sums the searches of all users in an open window.
func QuotaUsage(ctx context.Context, db *gorm.DB, since time.Time, limit int) (limited, searches int64, err error) {
	active := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.User{}).Where("last_search_time > ?", since.UTC())
	}
	if err = active().Where("search_count >= ?", limit).Count(&limited).Error; err != nil {
		return 0, 0, err
	}
	var row struct{ Total int64 }
	if err = active().Select("COALESCE(SUM(search_count), 0) AS total").Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return limited, row.Total, nil
}

// CountDeliveriesSince counts deliveries at or after since.
func CountDeliveriesSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Delivery{}).Where("created_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}
