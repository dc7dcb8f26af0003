package domain

import (
	"context"
	"errors"
	"time"
)

type CreateRequest struct {
	Label      string     `json:"label"`
	Amount     float64    `json:"amount"`
	Category   *string    `json:"category"`
	IncurredAt *time.Time `json:"incurred_at"`
	Notes      *string    `json:"notes"`
}

// MonthlySummary totals a month's expenses with a per-category breakdown.
type MonthlySummary struct {
	MonthYear  string             `json:"month_year"`
	Total      float64            `json:"total"`
	ByCategory map[string]float64 `json:"by_category"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Expense, error)
	List(ctx context.Context, monthYear string) ([]Expense, error)
	Delete(ctx context.Context, id string) error
	MonthlyTotal(ctx context.Context, monthYear string) (*MonthlySummary, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidLabel     = errors.New("invalid_label")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMonthYear = errors.New("invalid_month_year")
	ErrNotFound         = errors.New("not_found")
)
