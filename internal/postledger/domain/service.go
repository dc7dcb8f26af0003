package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
)

// AmountBreakdown is the priced view of one month's ledger for a client.
type AmountBreakdown struct {
	ClientID  string             `json:"client_id"`
	MonthYear string             `json:"month_year"`
	Counts    map[string]int     `json:"counts"`
	Amounts   map[string]float64 `json:"amounts"`
	Total     float64            `json:"total"`
}

type Service interface {
	Increment(ctx context.Context, clientID, platform, monthYear string) (*PostCount, error)
	// Decrement clamps at zero; decrementing a missing or empty row is a
	// no-op, not an error.
	Decrement(ctx context.Context, clientID, platform, monthYear string) (*PostCount, error)
	SetCount(ctx context.Context, clientID, platform, monthYear string, count int) (*PostCount, error)
	List(ctx context.Context, clientID, monthYear string) ([]PostCount, error)
	// AmountDue prices the month's ledger. Platforms without a configured
	// rate price at zero; platforms with a rate but no row count as zero.
	AmountDue(ctx context.Context, clientID, monthYear string) (*AmountBreakdown, error)
	// Settle atomically records the completed per-post payment, zeroes the
	// month's counters and advances the client's next payment date.
	Settle(ctx context.Context, clientID, monthYear string) (*paymentdomain.Payment, error)
}

var (
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidPlatform  = errors.New("invalid_platform")
	ErrInvalidMonthYear = errors.New("invalid_month_year")
	ErrInvalidCount     = errors.New("invalid_count")
	ErrClientNotFound   = errors.New("client_not_found")
	ErrClientArchived   = errors.New("client_archived")
	ErrNotPerPost       = errors.New("not_per_post")
)
