// Package domain contains persistence models for per-post metered usage.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MonthYearLayout is the ledger period key format, e.g. "2026-09".
const MonthYearLayout = "2006-01"

// PostCount tracks billed units for one client, platform and month. Rows are
// created lazily on first increment and zeroed, never deleted, on settlement.
type PostCount struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ClientID  snowflake.ID `json:"client_id" gorm:"not null;index:ux_post_counts_key,priority:1"`
	Platform  string       `json:"platform" gorm:"type:text;not null;index:ux_post_counts_key,priority:2"`
	MonthYear string       `json:"month_year" gorm:"type:text;not null;index:ux_post_counts_key,priority:3"`
	Count     int          `json:"count" gorm:"not null;default:0"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PostCount) TableName() string { return "post_counts" }
