package domain

import (
	"context"
	"errors"
	"time"
)

type CreateRequest struct {
	Name       string  `json:"name"`
	Role       *string `json:"role"`
	Salary     float64 `json:"salary"`
	Currency   string  `json:"currency"`
	PaymentDay *string `json:"payment_day"`
}

type UpdateRequest struct {
	ID         string   `json:"id"`
	Name       *string  `json:"name,omitempty"`
	Role       *string  `json:"role,omitempty"`
	Salary     *float64 `json:"salary,omitempty"`
	Currency   *string  `json:"currency,omitempty"`
	PaymentDay *string  `json:"payment_day,omitempty"`
	Active     *bool    `json:"active,omitempty"`
}

// PayrollEntry pairs a member with their next payout date.
type PayrollEntry struct {
	Member  TeamMember `json:"member"`
	DueDate time.Time  `json:"due_date"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*TeamMember, error)
	Get(ctx context.Context, id string) (*TeamMember, error)
	List(ctx context.Context, includeInactive bool) ([]TeamMember, error)
	Update(ctx context.Context, req UpdateRequest) (*TeamMember, error)
	Delete(ctx context.Context, id string) error
	UpcomingPayroll(ctx context.Context, withinDays int) ([]PayrollEntry, error)
	MonthlyPayroll(ctx context.Context) (float64, error)
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidSalary = errors.New("invalid_salary")
	ErrNotFound      = errors.New("not_found")
)
