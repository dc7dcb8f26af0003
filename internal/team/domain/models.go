// Package domain contains persistence models for payroll team members.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TeamMember is a payroll recipient. PaymentDay is free text from the intake
// form ("15th", "1st of month") and is parsed leniently when scheduling.
type TeamMember struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	Name       string       `json:"name" gorm:"type:text;not null"`
	Role       *string      `json:"role,omitempty" gorm:"type:text"`
	Salary     float64      `json:"salary" gorm:"not null;default:0"`
	Currency   string       `json:"currency" gorm:"type:text;not null;default:'USD'"`
	PaymentDay *string      `json:"payment_day,omitempty" gorm:"type:text"`
	Active     bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TeamMember) TableName() string { return "team_members" }
