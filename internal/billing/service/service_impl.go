package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p ServiceParam) billingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billing.service"),
	}
}

func (s *Service) Reconcile(ctx context.Context, clientID string) (billingdomain.ReconcileResult, error) {
	id, err := clientdomain.ParseID(clientID)
	if err != nil {
		return billingdomain.ReconcileResult{}, billingdomain.ErrInvalidClient
	}

	var result billingdomain.ReconcileResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err = s.ReconcileTx(ctx, tx, id)
		return err
	})
	return result, err
}

func (s *Service) ReconcileTx(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) (billingdomain.ReconcileResult, error) {
	var client clientdomain.Client
	err := tx.WithContext(ctx).First(&client, "id = ?", clientID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return billingdomain.ReconcileResult{}, billingdomain.ErrClientNotFound
		}
		return billingdomain.ReconcileResult{}, err
	}

	completed, err := countCompletedPayments(ctx, tx, clientID)
	if err != nil {
		return billingdomain.ReconcileResult{}, err
	}

	tiers, err := loadTiers(ctx, tx, clientID)
	if err != nil {
		return billingdomain.ReconcileResult{}, err
	}

	progress := billingdomain.ResolveTier(tiers, completed)
	result := billingdomain.ReconcileResult{
		ClientID:     clientID,
		TierIndex:    progress.Index,
		PaymentCount: completed,
		TierComplete: progress.IsComplete,
	}

	if client.CurrentTierIndex == progress.Index && client.PaymentCount == completed {
		return result, nil
	}

	err = tx.WithContext(ctx).Exec(
		`UPDATE clients
		 SET current_tier_index = ?, payment_count = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		progress.Index,
		completed,
		clientID,
	).Error
	if err != nil {
		return billingdomain.ReconcileResult{}, err
	}

	s.log.Info("client tier reconciled",
		zap.String("client_id", clientID.String()),
		zap.Int("tier_index", progress.Index),
		zap.Int("payment_count", completed),
		zap.Bool("tier_complete", progress.IsComplete),
	)

	result.Changed = true
	return result, nil
}

func countCompletedPayments(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) (int, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("client_id = ? AND status = ?", clientID, paymentdomain.PaymentStatusCompleted).
		Count(&count).Error
	return int(count), err
}

func loadTiers(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) ([]clientdomain.Tier, error) {
	var tiers []clientdomain.Tier
	err := tx.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("position ASC").
		Find(&tiers).Error
	return tiers, err
}
