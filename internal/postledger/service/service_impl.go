package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/clock"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	postledgerdomain "github.com/smallbiznis/agencydesk/internal/postledger/domain"
	"github.com/smallbiznis/agencydesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BillingSvc billingdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	billingSvc billingdomain.Service
}

func New(p ServiceParam) postledgerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("postledger.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
	}
}

func (s *Service) Increment(ctx context.Context, clientID, platform, monthYear string) (*postledgerdomain.PostCount, error) {
	key, err := s.validateKey(clientID, platform, monthYear)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.adjust(ctx, tx, key, +1)
	})
	if err != nil {
		return nil, err
	}
	return s.find(ctx, key)
}

func (s *Service) Decrement(ctx context.Context, clientID, platform, monthYear string) (*postledgerdomain.PostCount, error) {
	key, err := s.validateKey(clientID, platform, monthYear)
	if err != nil {
		return nil, err
	}

	// Clamp at zero: rows never go negative and a missing row stays absent.
	err = s.db.WithContext(ctx).Exec(
		`UPDATE post_counts
		 SET count = count - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE client_id = ? AND platform = ? AND month_year = ? AND count > 0`,
		key.clientID, key.platform, key.monthYear,
	).Error
	if err != nil {
		return nil, err
	}
	return s.find(ctx, key)
}

func (s *Service) SetCount(ctx context.Context, clientID, platform, monthYear string, count int) (*postledgerdomain.PostCount, error) {
	if count < 0 {
		return nil, postledgerdomain.ErrInvalidCount
	}
	key, err := s.validateKey(clientID, platform, monthYear)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`UPDATE post_counts
			 SET count = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE client_id = ? AND platform = ? AND month_year = ?`,
			count, key.clientID, key.platform, key.monthYear,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return s.insert(ctx, tx, key, count)
	})
	if err != nil {
		return nil, err
	}
	return s.find(ctx, key)
}

func (s *Service) List(ctx context.Context, clientID, monthYear string) ([]postledgerdomain.PostCount, error) {
	id, err := clientdomain.ParseID(strings.TrimSpace(clientID))
	if err != nil {
		return nil, postledgerdomain.ErrInvalidClient
	}
	if _, err := time.Parse(postledgerdomain.MonthYearLayout, monthYear); err != nil {
		return nil, postledgerdomain.ErrInvalidMonthYear
	}

	var counts []postledgerdomain.PostCount
	err = s.db.WithContext(ctx).
		Where("client_id = ? AND month_year = ?", id, monthYear).
		Order("platform ASC").
		Find(&counts).Error
	return counts, err
}

func (s *Service) AmountDue(ctx context.Context, clientID, monthYear string) (*postledgerdomain.AmountBreakdown, error) {
	id, err := clientdomain.ParseID(strings.TrimSpace(clientID))
	if err != nil {
		return nil, postledgerdomain.ErrInvalidClient
	}
	if _, err := time.Parse(postledgerdomain.MonthYearLayout, monthYear); err != nil {
		return nil, postledgerdomain.ErrInvalidMonthYear
	}

	client, err := s.loadClient(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.List(ctx, clientID, monthYear)
	if err != nil {
		return nil, err
	}

	return buildBreakdown(client, counts, monthYear), nil
}

func (s *Service) Settle(ctx context.Context, clientID, monthYear string) (*paymentdomain.Payment, error) {
	id, err := clientdomain.ParseID(strings.TrimSpace(clientID))
	if err != nil {
		return nil, postledgerdomain.ErrInvalidClient
	}
	if _, err := time.Parse(postledgerdomain.MonthYearLayout, monthYear); err != nil {
		return nil, postledgerdomain.ErrInvalidMonthYear
	}

	now := s.clock.Now()
	var payment *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.loadClient(ctx, tx, id)
		if err != nil {
			return err
		}
		if client.Archived() {
			return postledgerdomain.ErrClientArchived
		}
		if client.BillingMode != clientdomain.BillingModePerPost {
			return postledgerdomain.ErrNotPerPost
		}

		var counts []postledgerdomain.PostCount
		err = tx.WithContext(ctx).
			Where("client_id = ? AND month_year = ?", id, monthYear).
			Find(&counts).Error
		if err != nil {
			return err
		}

		breakdown := buildBreakdown(client, counts, monthYear)
		totalPosts := 0
		platformUnits := datatypes.JSONMap{}
		for platform, count := range breakdown.Counts {
			totalPosts += count
			platformUnits[platform] = count
		}

		payment = &paymentdomain.Payment{
			ID:                s.genID.Generate(),
			ClientID:          id,
			Amount:            breakdown.Total,
			PaymentDate:       now,
			Status:            paymentdomain.PaymentStatusCompleted,
			Type:              paymentdomain.PaymentTypePost,
			PostCount:         &totalPosts,
			PlatformBreakdown: platformUnits,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}

		err = tx.WithContext(ctx).Exec(
			`UPDATE post_counts
			 SET count = 0, updated_at = CURRENT_TIMESTAMP
			 WHERE client_id = ? AND month_year = ?`,
			id, monthYear,
		).Error
		if err != nil {
			return err
		}

		if _, err := s.billingSvc.ReconcileTx(ctx, tx, id); err != nil {
			return err
		}

		day := 1
		if client.FixedPaymentDay != nil {
			day = int(*client.FixedPaymentDay)
		}
		next := billingdomain.NextFixedDay(now, day)
		return tx.WithContext(ctx).Exec(
			`UPDATE clients SET next_payment = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			next, id,
		).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("per-post settlement recorded",
		zap.String("client_id", id.String()),
		zap.String("month_year", monthYear),
		zap.Float64("amount", payment.Amount),
	)
	return payment, nil
}

type countKey struct {
	clientID  snowflake.ID
	platform  string
	monthYear string
}

func (s *Service) validateKey(clientID, platform, monthYear string) (countKey, error) {
	id, err := clientdomain.ParseID(strings.TrimSpace(clientID))
	if err != nil {
		return countKey{}, postledgerdomain.ErrInvalidClient
	}

	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return countKey{}, postledgerdomain.ErrInvalidPlatform
	}

	if _, err := time.Parse(postledgerdomain.MonthYearLayout, monthYear); err != nil {
		return countKey{}, postledgerdomain.ErrInvalidMonthYear
	}

	return countKey{clientID: id, platform: platform, monthYear: monthYear}, nil
}

func (s *Service) adjust(ctx context.Context, tx *gorm.DB, key countKey, delta int) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE post_counts
		 SET count = count + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE client_id = ? AND platform = ? AND month_year = ?`,
		delta, key.clientID, key.platform, key.monthYear,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if err := s.insert(ctx, tx, key, delta); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the creation race; fold into the existing row.
			return s.adjust(ctx, tx, key, delta)
		}
		return err
	}
	return nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, key countKey, count int) error {
	now := s.clock.Now()
	return tx.WithContext(ctx).Create(&postledgerdomain.PostCount{
		ID:        s.genID.Generate(),
		ClientID:  key.clientID,
		Platform:  key.platform,
		MonthYear: key.monthYear,
		Count:     count,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func (s *Service) find(ctx context.Context, key countKey) (*postledgerdomain.PostCount, error) {
	var row postledgerdomain.PostCount
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND platform = ? AND month_year = ?", key.clientID, key.platform, key.monthYear).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Lazy rows: absent means zero.
			return &postledgerdomain.PostCount{
				ClientID:  key.clientID,
				Platform:  key.platform,
				MonthYear: key.monthYear,
			}, nil
		}
		return nil, err
	}
	return &row, nil
}

func (s *Service) loadClient(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := tx.WithContext(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, postledgerdomain.ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func buildBreakdown(client *clientdomain.Client, counts []postledgerdomain.PostCount, monthYear string) *postledgerdomain.AmountBreakdown {
	breakdown := &postledgerdomain.AmountBreakdown{
		ClientID:  client.ID.String(),
		MonthYear: monthYear,
		Counts:    map[string]int{},
		Amounts:   map[string]float64{},
	}

	// Platforms with a configured rate but no usage yet still appear, at zero.
	for platform := range client.PerPostRates {
		breakdown.Counts[platform] = 0
		breakdown.Amounts[platform] = 0
	}

	for _, pc := range counts {
		rate := billingdomain.Numeric(client.PerPostRates[pc.Platform])
		breakdown.Counts[pc.Platform] = pc.Count
		amount := float64(pc.Count) * rate
		breakdown.Amounts[pc.Platform] = amount
		breakdown.Total += amount
	}
	return breakdown
}
