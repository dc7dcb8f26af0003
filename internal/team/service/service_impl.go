package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/clock"
	"github.com/smallbiznis/agencydesk/internal/team/domain"
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
	store repository.Repository[domain.TeamMember]

	genID *snowflake.Node
	clock clock.Clock
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("team.service"),
		store: repository.ProvideStore[domain.TeamMember](p.DB),

		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.TeamMember, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Salary < 0 {
		return nil, domain.ErrInvalidSalary
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	member := &domain.TeamMember{
		ID:         s.genID.Generate(),
		Name:       req.Name,
		Role:       req.Role,
		Salary:     req.Salary,
		Currency:   currency,
		PaymentDay: req.PaymentDay,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, member); err != nil {
		return nil, err
	}

	s.log.Info("team member created", zap.String("member_id", member.ID.String()))
	return member, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.TeamMember, error) {
	memberID, err := clientdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	member, err := s.store.FindOne(ctx, &domain.TeamMember{ID: memberID})
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotFound
	}
	return member, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]domain.TeamMember, error) {
	opts := []option.QueryOption{option.WithOrder("name ASC")}
	if !includeInactive {
		opts = append(opts, option.WithCondition("active = ?", true))
	}

	rows, err := s.store.Find(ctx, &domain.TeamMember{}, opts...)
	if err != nil {
		return nil, err
	}

	members := make([]domain.TeamMember, 0, len(rows))
	for _, row := range rows {
		members = append(members, *row)
	}
	return members, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.TeamMember, error) {
	memberID, err := clientdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if req.Salary != nil && *req.Salary < 0 {
		return nil, domain.ErrInvalidSalary
	}

	var member *domain.TeamMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.store.WithTrx(tx)
		member, err = store.FindOne(ctx, &domain.TeamMember{ID: memberID})
		if err != nil {
			return err
		}
		if member == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			member.Name = strings.TrimSpace(*req.Name)
		}
		if req.Role != nil {
			member.Role = req.Role
		}
		if req.Salary != nil {
			member.Salary = *req.Salary
		}
		if req.Currency != nil {
			member.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
		}
		if req.PaymentDay != nil {
			member.PaymentDay = req.PaymentDay
		}
		if req.Active != nil {
			member.Active = *req.Active
		}
		member.UpdatedAt = s.clock.Now()
		return tx.WithContext(ctx).Save(member).Error
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	member, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, member.ID.String())
}

func (s *Service) UpcomingPayroll(ctx context.Context, withinDays int) ([]domain.PayrollEntry, error) {
	if withinDays <= 0 {
		withinDays = 7
	}

	members, err := s.List(ctx, false)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	horizon := now.AddDate(0, 0, withinDays)

	entries := make([]domain.PayrollEntry, 0, len(members))
	for _, member := range members {
		day := 1
		if member.PaymentDay != nil {
			day = billingdomain.ParsePaymentDay(*member.PaymentDay)
		}
		due := billingdomain.NextFixedDay(now, day)
		if due.After(horizon) {
			continue
		}
		entries = append(entries, domain.PayrollEntry{Member: member, DueDate: due})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DueDate.Before(entries[j].DueDate)
	})
	return entries, nil
}

func (s *Service) MonthlyPayroll(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).Model(&domain.TeamMember{}).
		Where("active = ?", true).
		Select("COALESCE(SUM(salary), 0)").
		Scan(&total).Error
	return total, err
}
