package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/agencydesk/pkg/db/pagination"
)

type TierInput struct {
	Amount         float64            `json:"amount"`
	DurationMonths int                `json:"duration_months"`
	PaymentType    BillingMode        `json:"payment_type"`
	Services       map[string]float64 `json:"services"`
}

type CreateRequest struct {
	Name             string             `json:"name"`
	Email            *string            `json:"email"`
	Company          *string            `json:"company"`
	BillingMode      BillingMode        `json:"billing_mode"`
	MonthlyRate      *float64           `json:"monthly_rate"`
	WeeklyRate       *float64           `json:"weekly_rate"`
	Services         map[string]float64 `json:"services"`
	FinalMonthlyRate *float64           `json:"final_monthly_rate"`
	FinalWeeklyRate  *float64           `json:"final_weekly_rate"`
	FinalServices    map[string]float64 `json:"final_services"`
	PerPostRates     map[string]float64 `json:"per_post_rates"`
	FixedPaymentDay  *int16             `json:"fixed_payment_day"`
	Tiers            []TierInput        `json:"tiers"`
}

type UpdateRequest struct {
	ID               string              `json:"id"`
	Name             *string             `json:"name,omitempty"`
	Email            *string             `json:"email,omitempty"`
	Company          *string             `json:"company,omitempty"`
	BillingMode      *BillingMode        `json:"billing_mode,omitempty"`
	MonthlyRate      *float64            `json:"monthly_rate,omitempty"`
	WeeklyRate       *float64            `json:"weekly_rate,omitempty"`
	Services         *map[string]float64 `json:"services,omitempty"`
	FinalMonthlyRate *float64            `json:"final_monthly_rate,omitempty"`
	FinalWeeklyRate  *float64            `json:"final_weekly_rate,omitempty"`
	FinalServices    *map[string]float64 `json:"final_services,omitempty"`
	PerPostRates     *map[string]float64 `json:"per_post_rates,omitempty"`
	FixedPaymentDay  *int16              `json:"fixed_payment_day,omitempty"`
	Status           *ClientStatus       `json:"status,omitempty"`
	Tiers            *[]TierInput        `json:"tiers,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	Status          ClientStatus `form:"status"`
	IncludeArchived bool         `form:"include_archived"`
}

type ListResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type UpcomingRequest struct {
	WithinDays int `form:"within_days"`
}

type UpcomingEntry struct {
	Client      Client    `json:"client"`
	DueDate     time.Time `json:"due_date"`
	AmountDue   float64   `json:"amount_due"`
	Approximate bool      `json:"approximate"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Client, error)
	Get(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Update(ctx context.Context, req UpdateRequest) (*Client, error)
	Archive(ctx context.Context, id string) (*Client, error)
	Unarchive(ctx context.Context, id string) (*Client, error)
	Upcoming(ctx context.Context, req UpcomingRequest) ([]UpcomingEntry, error)
	CountActive(ctx context.Context) (int64, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidBillingMode = errors.New("invalid_billing_mode")
	ErrInvalidTier        = errors.New("invalid_tier")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyArchived    = errors.New("already_archived")
	ErrNotArchived        = errors.New("not_archived")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
