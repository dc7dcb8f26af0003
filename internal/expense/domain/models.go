// Package domain contains persistence models for agency operating expenses.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Expense struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	Label      string       `json:"label" gorm:"type:text;not null"`
	Amount     float64      `json:"amount" gorm:"not null"`
	Category   *string      `json:"category,omitempty" gorm:"type:text"`
	IncurredAt time.Time    `json:"incurred_at" gorm:"not null"`
	Notes      *string      `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Expense) TableName() string { return "expenses" }
