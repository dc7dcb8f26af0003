// Package domain contains persistence models for billed clients and their
// tier schedules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingMode selects which rate path applies to a client.
type BillingMode string

const (
	BillingModeMonthly BillingMode = "monthly"
	BillingModeWeekly  BillingMode = "weekly"
	BillingModePerPost BillingMode = "per_post"
)

// ClientStatus represents lifecycle states for a client.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusPending  ClientStatus = "pending"
	ClientStatusArchived ClientStatus = "archived"
)

// Client is a billed entity. NextPayment is nil while the client is archived
// so archived clients drop out of every due-date query.
type Client struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	Name             string            `json:"name" gorm:"type:text;not null"`
	Email            *string           `json:"email,omitempty" gorm:"type:text"`
	Company          *string           `json:"company,omitempty" gorm:"type:text"`
	BillingMode      BillingMode       `json:"billing_mode" gorm:"type:text;not null"`
	MonthlyRate      *float64          `json:"monthly_rate,omitempty"`
	WeeklyRate       *float64          `json:"weekly_rate,omitempty"`
	Services         datatypes.JSONMap `json:"services" gorm:"type:jsonb;not null;default:'{}'"`
	FinalMonthlyRate *float64          `json:"final_monthly_rate,omitempty"`
	FinalWeeklyRate  *float64          `json:"final_weekly_rate,omitempty"`
	FinalServices    datatypes.JSONMap `json:"final_services" gorm:"type:jsonb;not null;default:'{}'"`
	PerPostRates     datatypes.JSONMap `json:"per_post_rates" gorm:"type:jsonb;not null;default:'{}'"`
	FixedPaymentDay  *int16            `json:"fixed_payment_day,omitempty" gorm:"type:smallint"`
	CurrentTierIndex int               `json:"current_tier_index" gorm:"not null"`
	PaymentCount     int               `json:"payment_count" gorm:"not null;default:0"`
	Status           ClientStatus      `json:"status" gorm:"type:text;not null;default:'active'"`
	NextPayment      *time.Time        `json:"next_payment,omitempty"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Tiers []Tier `json:"tiers,omitempty" gorm:"foreignKey:ClientID"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

// Tier is one stage of a client's tiered schedule. DurationMonths counts
// completed payments, not calendar months.
type Tier struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	ClientID       snowflake.ID      `json:"client_id" gorm:"not null;index:ux_client_tiers_position,priority:1"`
	Position       int               `json:"position" gorm:"not null;index:ux_client_tiers_position,priority:2"`
	Amount         float64           `json:"amount" gorm:"not null;default:0"`
	DurationMonths int               `json:"duration_months" gorm:"not null"`
	PaymentType    BillingMode       `json:"payment_type" gorm:"type:text;not null;default:'monthly'"`
	Services       datatypes.JSONMap `json:"services" gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tier) TableName() string { return "client_tiers" }

// Archived reports whether the client is excluded from active billing.
func (c *Client) Archived() bool { return c.Status == ClientStatusArchived }

// Tiered reports whether the client bills through a tier schedule.
func (c *Client) Tiered() bool { return len(c.Tiers) > 0 }
