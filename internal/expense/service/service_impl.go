package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/clock"
	"github.com/smallbiznis/agencydesk/internal/expense/domain"
	postledgerdomain "github.com/smallbiznis/agencydesk/internal/postledger/domain"
	"github.com/smallbiznis/agencydesk/pkg/db/option"
	"github.com/smallbiznis/agencydesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	store repository.Repository[domain.Expense]

	genID *snowflake.Node
	clock clock.Clock
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("expense.service"),
		store: repository.ProvideStore[domain.Expense](p.DB),

		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Expense, error) {
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		return nil, domain.ErrInvalidLabel
	}
	if req.Amount < 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	incurredAt := now
	if req.IncurredAt != nil {
		incurredAt = req.IncurredAt.UTC()
	}

	expense := &domain.Expense{
		ID:         s.genID.Generate(),
		Label:      req.Label,
		Amount:     req.Amount,
		Category:   req.Category,
		IncurredAt: incurredAt,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, expense); err != nil {
		return nil, err
	}

	s.log.Info("expense recorded",
		zap.String("expense_id", expense.ID.String()),
		zap.Float64("amount", expense.Amount),
	)
	return expense, nil
}

func (s *Service) List(ctx context.Context, monthYear string) ([]domain.Expense, error) {
	opts := []option.QueryOption{option.WithOrder("incurred_at DESC")}
	if monthYear != "" {
		start, end, err := monthBounds(monthYear)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCondition("incurred_at >= ? AND incurred_at < ?", start, end))
	}

	rows, err := s.store.Find(ctx, &domain.Expense{}, opts...)
	if err != nil {
		return nil, err
	}

	expenses := make([]domain.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, *row)
	}
	return expenses, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	expenseID, err := clientdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	expense, err := s.store.FindOne(ctx, &domain.Expense{ID: expenseID})
	if err != nil {
		return err
	}
	if expense == nil {
		return domain.ErrNotFound
	}
	return s.store.Delete(ctx, expenseID.String())
}

func (s *Service) MonthlyTotal(ctx context.Context, monthYear string) (*domain.MonthlySummary, error) {
	if monthYear == "" {
		monthYear = s.clock.Now().Format(postledgerdomain.MonthYearLayout)
	}

	expenses, err := s.List(ctx, monthYear)
	if err != nil {
		return nil, err
	}

	summary := &domain.MonthlySummary{
		MonthYear:  monthYear,
		ByCategory: map[string]float64{},
	}
	for _, e := range expenses {
		category := "uncategorized"
		if e.Category != nil && *e.Category != "" {
			category = *e.Category
		}
		summary.ByCategory[category] += e.Amount
		summary.Total += e.Amount
	}
	return summary, nil
}

func monthBounds(monthYear string) (time.Time, time.Time, error) {
	start, err := time.Parse(postledgerdomain.MonthYearLayout, monthYear)
	if err != nil {
		return time.Time{}, time.Time{}, domain.ErrInvalidMonthYear
	}
	return start, start.AddDate(0, 1, 0), nil
}
