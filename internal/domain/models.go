// Package domain defines the persistence models for users, cached search
// results and processed updates. These types are mapped with GORM and form
// the core data layer of the bot.
package domain

import "time"

// User is the per-user state row. It carries the search quota window, the
// delivery cooldown anchor and super-user membership. Rows are created on
// first contact with zero state and are never deleted.
//
// Fields:
//   - UserID: Telegram user id (primary key).
//   - DisplayName: name shown in super-user listings and greetings.
//   - IsSuperUser: membership in the super tier (admins are configured).
//   - SearchCount: searches consumed in the current window.
//   - LastSearchTime: anchor of the current window; nil when none.
//   - LastPDFRequest: last successful delivery click; nil when none.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	UserID         int64      `json:"user_id"          gorm:"primaryKey;autoIncrement:false"`
	DisplayName    string     `json:"display_name"     gorm:"type:varchar(255);not null;default:''"`
	IsSuperUser    bool       `json:"is_super_user"    gorm:"not null;default:false;index"`
	SearchCount    int        `json:"search_count"     gorm:"not null;default:0"`
	LastSearchTime *time.Time `json:"last_search_time"`
	LastPDFRequest *time.Time `json:"last_pdf_request"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// CachedResult maps a short fingerprint to the title and URL of a search
// result shown to a chat. Entries are read once and deleted on delivery.
type CachedResult struct {
	ChatID      int64     `json:"chat_id"     gorm:"primaryKey;autoIncrement:false"`
	Fingerprint string    `json:"fingerprint" gorm:"type:char(16);primaryKey"`
	Title       string    `json:"title"       gorm:"type:text;not null"`
	URL         string    `json:"url"         gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"  gorm:"not null;index"`
}

// TableName returns the database table name for CachedResult.
func (CachedResult) TableName() string { return "results" }

// ProcessedUpdate records a Telegram update id that has already been handled,
// so a webhook redelivery is dropped instead of being processed twice.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }

// Delivery is one successful PDF delivery, kept for usage statistics.
type Delivery struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int64     `gorm:"not null;index"`
	ChatID    int64     `gorm:"not null"`
	URL       string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Delivery) TableName() string { return "deliveries" }
