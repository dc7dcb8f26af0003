// Package domain contains persistence models for billing events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus represents the settlement state of a billing event.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusOverdue   PaymentStatus = "overdue"
)

// PaymentType distinguishes regular payments, per-post settlements and
// reminder entries.
type PaymentType string

const (
	PaymentTypePayment  PaymentType = "payment"
	PaymentTypePost     PaymentType = "post"
	PaymentTypeReminder PaymentType = "reminder"
)

// Payment is a completed or pending billing event. Only completed payments
// count toward tier progression.
type Payment struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	ClientID          snowflake.ID      `json:"client_id" gorm:"not null;index"`
	Amount            float64           `json:"amount" gorm:"not null"`
	PaymentDate       time.Time         `json:"payment_date" gorm:"not null"`
	DueDate           *time.Time        `json:"due_date,omitempty" gorm:"index"`
	Status            PaymentStatus     `json:"status" gorm:"type:text;not null;default:'pending'"`
	Type              PaymentType       `json:"type" gorm:"type:text;not null;default:'payment'"`
	PostCount         *int              `json:"post_count,omitempty"`
	PlatformBreakdown datatypes.JSONMap `json:"platform_breakdown,omitempty" gorm:"type:jsonb"`
	Notes             *string           `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
