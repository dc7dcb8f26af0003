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
	"github.com/smallbiznis/agencydesk/pkg/db/pagination"
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

func New(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payment.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
	}
}

func (s *Service) MarkPaid(ctx context.Context, req paymentdomain.MarkPaidRequest) (*paymentdomain.Payment, error) {
	clientID, err := clientdomain.ParseID(strings.TrimSpace(req.ClientID))
	if err != nil {
		return nil, paymentdomain.ErrInvalidClient
	}
	if req.Amount < 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	paidAt := s.clock.Now()
	if req.PaymentDate != nil {
		paidAt = req.PaymentDate.UTC()
	}

	var payment *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.loadClient(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if client.Archived() {
			return paymentdomain.ErrClientArchived
		}

		if req.DueDate != nil {
			exists, err := s.existsTx(ctx, tx, clientID, *req.DueDate)
			if err != nil {
				return err
			}
			if exists {
				return paymentdomain.ErrDuplicatePayment
			}
		}

		amount := req.Amount
		paymentType := paymentdomain.PaymentTypePayment
		var postCount *int
		var platformUnits datatypes.JSONMap

		if client.BillingMode == clientdomain.BillingModePerPost {
			// Snapshot the ledger onto the payment row; the counters are
			// zeroed below and this record is the only trace of the usage.
			month := paidAt.Format(postledgerdomain.MonthYearLayout)
			metered, units, totalPosts, err := meteredCycle(ctx, tx, client, month)
			if err != nil {
				return err
			}
			if amount == 0 {
				amount = metered
			}
			paymentType = paymentdomain.PaymentTypePost
			postCount = &totalPosts
			platformUnits = units
		} else if amount == 0 {
			amount, err = s.cycleAmount(ctx, tx, client)
			if err != nil {
				return err
			}
		}

		payment = &paymentdomain.Payment{
			ID:                s.genID.Generate(),
			ClientID:          clientID,
			Amount:            amount,
			PaymentDate:       paidAt,
			DueDate:           req.DueDate,
			Status:            paymentdomain.PaymentStatusCompleted,
			Type:              paymentType,
			PostCount:         postCount,
			PlatformBreakdown: platformUnits,
			Notes:             req.Notes,
			CreatedAt:         paidAt,
			UpdatedAt:         paidAt,
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}

		result, err := s.billingSvc.ReconcileTx(ctx, tx, clientID)
		if err != nil {
			return err
		}

		next := s.nextDueDate(client, result, paidAt)
		if err := updateNextPayment(ctx, tx, clientID, next); err != nil {
			return err
		}

		if client.BillingMode == clientdomain.BillingModePerPost {
			month := paidAt.Format(postledgerdomain.MonthYearLayout)
			if err := resetPostCounts(ctx, tx, clientID, month); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("client_id", clientID.String()),
		zap.Float64("amount", payment.Amount),
	)
	return payment, nil
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListRequest) (paymentdomain.ListResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	stmt := s.db.WithContext(ctx).Model(&paymentdomain.Payment{}).Order("payment_date DESC, id DESC").Limit(limit + 1)
	if clientID := strings.TrimSpace(req.ClientID); clientID != "" {
		id, err := clientdomain.ParseID(clientID)
		if err != nil {
			return paymentdomain.ListResponse{}, paymentdomain.ErrInvalidClient
		}
		stmt = stmt.Where("client_id = ?", id)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	var rows []*paymentdomain.Payment
	if err := stmt.Find(&rows).Error; err != nil {
		return paymentdomain.ListResponse{}, err
	}

	rows, pageInfo := pagination.BuildPageInfo(rows, limit, func(p *paymentdomain.Payment) string {
		return p.ID.String()
	})

	payments := make([]paymentdomain.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, *row)
	}
	return paymentdomain.ListResponse{PageInfo: pageInfo, Payments: payments}, nil
}

func (s *Service) CountCompleted(ctx context.Context, clientID string) (int, error) {
	id, err := clientdomain.ParseID(strings.TrimSpace(clientID))
	if err != nil {
		return 0, paymentdomain.ErrInvalidClient
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("client_id = ? AND status = ?", id, paymentdomain.PaymentStatusCompleted).
		Count(&count).Error
	return int(count), err
}

func (s *Service) Exists(ctx context.Context, clientID string, dueDate time.Time) (bool, error) {
	id, err := clientdomain.ParseID(strings.TrimSpace(clientID))
	if err != nil {
		return false, paymentdomain.ErrInvalidClient
	}
	return s.existsTx(ctx, s.db, id, dueDate)
}

func (s *Service) existsTx(ctx context.Context, tx *gorm.DB, clientID snowflake.ID, dueDate time.Time) (bool, error) {
	dayStart := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	err := tx.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("client_id = ? AND status = ? AND due_date >= ? AND due_date < ?",
			clientID, paymentdomain.PaymentStatusCompleted, dayStart, dayEnd).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) loadClient(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := tx.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&client, "id = ?", clientID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, paymentdomain.ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// cycleAmount computes the charge for the cycle being settled, from the tier
// state before this payment is counted.
func (s *Service) cycleAmount(ctx context.Context, tx *gorm.DB, client *clientdomain.Client) (float64, error) {
	// Resolve against the count before this payment lands: the charge
	// belongs to the cycle being settled, not the next one.
	completed, err := countCompleted(ctx, tx, client.ID)
	if err != nil {
		return 0, err
	}
	progress := billingdomain.ResolveTier(client.Tiers, completed)
	return billingdomain.AmountDue(client, progress), nil
}

func (s *Service) nextDueDate(client *clientdomain.Client, result billingdomain.ReconcileResult, paidAt time.Time) time.Time {
	if client.BillingMode == clientdomain.BillingModePerPost {
		day := 1
		if client.FixedPaymentDay != nil {
			day = int(*client.FixedPaymentDay)
		}
		return billingdomain.NextFixedDay(s.clock.Now(), day)
	}

	progress := billingdomain.TierProgress{Index: result.TierIndex, IsComplete: result.TierComplete}
	cadence := billingdomain.CadenceFor(client, progress)
	return billingdomain.NextDueDate(paidAt, cadence)
}

func countCompleted(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) (int, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("client_id = ? AND status = ?", clientID, paymentdomain.PaymentStatusCompleted).
		Count(&count).Error
	return int(count), err
}

// meteredCycle prices the month's ledger and returns the platform unit
// breakdown alongside the amount. Platforms with a configured rate but no
// rows appear with zero units.
func meteredCycle(ctx context.Context, tx *gorm.DB, client *clientdomain.Client, monthYear string) (float64, datatypes.JSONMap, int, error) {
	var counts []postledgerdomain.PostCount
	err := tx.WithContext(ctx).
		Where("client_id = ? AND month_year = ?", client.ID, monthYear).
		Find(&counts).Error
	if err != nil {
		return 0, nil, 0, err
	}

	units := datatypes.JSONMap{}
	for platform := range client.PerPostRates {
		units[platform] = 0
	}

	var total float64
	var totalPosts int
	for _, pc := range counts {
		units[pc.Platform] = pc.Count
		totalPosts += pc.Count
		total += float64(pc.Count) * billingdomain.Numeric(client.PerPostRates[pc.Platform])
	}
	return total, units, totalPosts, nil
}

func updateNextPayment(ctx context.Context, tx *gorm.DB, clientID snowflake.ID, next time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE clients SET next_payment = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		next,
		clientID,
	).Error
}

func resetPostCounts(ctx context.Context, tx *gorm.DB, clientID snowflake.ID, monthYear string) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE post_counts SET count = 0, updated_at = CURRENT_TIMESTAMP WHERE client_id = ? AND month_year = ?`,
		clientID,
		monthYear,
	).Error
}
