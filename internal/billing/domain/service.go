package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ReconcileResult reports what a reconciliation pass found.
type ReconcileResult struct {
	ClientID     snowflake.ID `json:"client_id"`
	TierIndex    int          `json:"tier_index"`
	PaymentCount int          `json:"payment_count"`
	TierComplete bool         `json:"tier_complete"`
	Changed      bool         `json:"changed"`
}

type Service interface {
	// Reconcile recomputes a client's tier index and payment count from the
	// authoritative completed-payment rows and persists any drift. It is
	// idempotent: a second call with no intervening payment is a no-op.
	Reconcile(ctx context.Context, clientID string) (ReconcileResult, error)

	// ReconcileTx is Reconcile inside an existing transaction, for callers
	// that bundle payment writes and reconciliation atomically.
	ReconcileTx(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) (ReconcileResult, error)
}

var (
	ErrInvalidClient  = errors.New("invalid_client")
	ErrClientNotFound = errors.New("client_not_found")
)
