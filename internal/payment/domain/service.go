package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/agencydesk/pkg/db/pagination"
)

type MarkPaidRequest struct {
	ClientID string `json:"client_id"`
	// Amount overrides the computed cycle amount when positive.
	Amount      float64    `json:"amount"`
	PaymentDate *time.Time `json:"payment_date"`
	DueDate     *time.Time `json:"due_date"`
	Notes       *string    `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	ClientID string        `form:"client_id"`
	Status   PaymentStatus `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type Service interface {
	// MarkPaid records a completed payment and runs the full progression
	// cascade in one transaction: tier reconciliation, due-date advance and,
	// for per-post clients, the ledger reset.
	MarkPaid(ctx context.Context, req MarkPaidRequest) (*Payment, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	CountCompleted(ctx context.Context, clientID string) (int, error)
	// Exists reports whether a completed payment already satisfies a due date.
	Exists(ctx context.Context, clientID string, dueDate time.Time) (bool, error)
}

var (
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrClientNotFound   = errors.New("client_not_found")
	ErrClientArchived   = errors.New("client_archived")
	ErrDuplicatePayment = errors.New("duplicate_payment")
)
