package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	"github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/clock"
	"github.com/smallbiznis/agencydesk/internal/config"
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
	Repo       domain.Repository
	BillingCfg *config.BillingConfigHolder
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	billingCfg *config.BillingConfigHolder
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("client.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		billingCfg: p.BillingCfg,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, domain.ErrInvalidName
	}
	if !validBillingMode(req.BillingMode) {
		return nil, domain.ErrInvalidBillingMode
	}
	if err := validateTiers(req.Tiers); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	client := &domain.Client{
		ID:               s.genID.Generate(),
		Name:             req.Name,
		Email:            req.Email,
		Company:          req.Company,
		BillingMode:      req.BillingMode,
		MonthlyRate:      req.MonthlyRate,
		WeeklyRate:       req.WeeklyRate,
		Services:         toJSONMap(req.Services),
		FinalMonthlyRate: req.FinalMonthlyRate,
		FinalWeeklyRate:  req.FinalWeeklyRate,
		FinalServices:    toJSONMap(req.FinalServices),
		PerPostRates:     toJSONMap(req.PerPostRates),
		FixedPaymentDay:  req.FixedPaymentDay,
		CurrentTierIndex: -1,
		Status:           domain.ClientStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if len(req.Tiers) > 0 {
		client.CurrentTierIndex = 0
	}

	next := s.initialDueDate(client, now)
	client.NextPayment = &next

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, client); err != nil {
			return err
		}
		tiers := buildTiers(s.genID, client.ID, req.Tiers, now)
		if len(tiers) == 0 {
			return nil
		}
		if err := tx.WithContext(ctx).Create(&tiers).Error; err != nil {
			return err
		}
		client.Tiers = tiers
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("billing_mode", string(client.BillingMode)),
		zap.Int("tiers", len(client.Tiers)),
	)
	return client, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Client, error) {
	clientID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	client, err := s.repo.FindByID(ctx, s.db, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrNotFound
	}
	return client, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	stmt := s.db.WithContext(ctx).Model(&domain.Client{}).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("id DESC").
		Limit(limit + 1)

	switch {
	case req.Status != "":
		if !validStatus(req.Status) {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		stmt = stmt.Where("status = ?", req.Status)
	case !req.IncludeArchived:
		// Archived clients never surface in default listings.
		stmt = stmt.Where("status <> ?", domain.ClientStatusArchived)
	}

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	var rows []*domain.Client
	if err := stmt.Find(&rows).Error; err != nil {
		return domain.ListResponse{}, err
	}

	rows, pageInfo := pagination.BuildPageInfo(rows, limit, func(c *domain.Client) string {
		return c.ID.String()
	})

	clients := make([]domain.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, *row)
	}
	return domain.ListResponse{PageInfo: pageInfo, Clients: clients}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Client, error) {
	clientID, err := domain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if req.BillingMode != nil && !validBillingMode(*req.BillingMode) {
		return nil, domain.ErrInvalidBillingMode
	}
	if req.Status != nil && !validStatus(*req.Status) {
		return nil, domain.ErrInvalidStatus
	}
	if req.Tiers != nil {
		if err := validateTiers(*req.Tiers); err != nil {
			return nil, err
		}
	}

	var client *domain.Client
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err = s.repo.FindByID(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.ErrNotFound
		}

		applyUpdate(client, req)
		client.UpdatedAt = s.clock.Now()

		if req.Tiers != nil {
			tiers := buildTiers(s.genID, client.ID, *req.Tiers, client.UpdatedAt)
			if err := s.repo.ReplaceTiers(ctx, tx, client.ID, tiers); err != nil {
				return err
			}
			client.Tiers = tiers
		}
		return s.repo.Update(ctx, tx, client)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Archive removes the client from active billing: status flips to archived
// and next_payment is cleared so due-date queries skip it.
func (s *Service) Archive(ctx context.Context, id string) (*domain.Client, error) {
	clientID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var client *domain.Client
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err = s.repo.FindByID(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.ErrNotFound
		}
		if client.Archived() {
			return domain.ErrAlreadyArchived
		}

		client.Status = domain.ClientStatusArchived
		client.NextPayment = nil
		client.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, client)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("client archived", zap.String("client_id", clientID.String()))
	return client, nil
}

// Unarchive restores the client to active billing. Tier progress was kept
// through the archive, so resolution resumes exactly where it stopped; only
// the due date is re-seeded, one cycle out from now.
func (s *Service) Unarchive(ctx context.Context, id string) (*domain.Client, error) {
	clientID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var client *domain.Client
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err = s.repo.FindByID(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.ErrNotFound
		}
		if !client.Archived() {
			return domain.ErrNotArchived
		}

		now := s.clock.Now()
		next := s.initialDueDate(client, now)
		client.Status = domain.ClientStatusActive
		client.NextPayment = &next
		client.UpdatedAt = now
		return s.repo.Update(ctx, tx, client)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("client unarchived", zap.String("client_id", clientID.String()))
	return client, nil
}

func (s *Service) Upcoming(ctx context.Context, req domain.UpcomingRequest) ([]domain.UpcomingEntry, error) {
	within := req.WithinDays
	if within <= 0 {
		within = s.billingCfg.Get().UpcomingWindowDays
	}

	now := s.clock.Now()
	horizon := now.AddDate(0, 0, within)

	var rows []*domain.Client
	err := s.db.WithContext(ctx).Model(&domain.Client{}).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("status = ? AND next_payment IS NOT NULL AND next_payment <= ?", domain.ClientStatusActive, horizon).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.UpcomingEntry, 0, len(rows))
	for _, client := range rows {
		if client.NextPayment == nil {
			continue
		}

		progress := billingdomain.ResolveTier(client.Tiers, client.PaymentCount)
		approximate := false
		if client.Tiered() && client.PaymentCount == 0 {
			// No payment history yet; estimate from elapsed time.
			progress = billingdomain.ApproximateTierByTime(client.Tiers, client.CreatedAt, now)
			approximate = true
		}

		entries = append(entries, domain.UpcomingEntry{
			Client:      *client,
			DueDate:     *client.NextPayment,
			AmountDue:   billingdomain.AmountDue(client, progress),
			Approximate: approximate,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DueDate.Before(entries[j].DueDate)
	})
	return entries, nil
}

func (s *Service) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Client{}).
		Where("status = ?", domain.ClientStatusActive).
		Count(&count).Error
	return count, err
}

func (s *Service) initialDueDate(client *domain.Client, from time.Time) time.Time {
	if client.BillingMode == domain.BillingModePerPost {
		day := 1
		if client.FixedPaymentDay != nil {
			day = int(*client.FixedPaymentDay)
		}
		return billingdomain.NextFixedDay(from, day)
	}

	progress := billingdomain.ResolveTier(client.Tiers, client.PaymentCount)
	cadence := billingdomain.CadenceFor(client, progress)
	return billingdomain.NextDueDate(from, cadence)
}

func applyUpdate(client *domain.Client, req domain.UpdateRequest) {
	if req.Name != nil {
		client.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		client.Email = req.Email
	}
	if req.Company != nil {
		client.Company = req.Company
	}
	if req.BillingMode != nil {
		client.BillingMode = *req.BillingMode
	}
	if req.MonthlyRate != nil {
		client.MonthlyRate = req.MonthlyRate
	}
	if req.WeeklyRate != nil {
		client.WeeklyRate = req.WeeklyRate
	}
	if req.Services != nil {
		client.Services = toJSONMap(*req.Services)
	}
	if req.FinalMonthlyRate != nil {
		client.FinalMonthlyRate = req.FinalMonthlyRate
	}
	if req.FinalWeeklyRate != nil {
		client.FinalWeeklyRate = req.FinalWeeklyRate
	}
	if req.FinalServices != nil {
		client.FinalServices = toJSONMap(*req.FinalServices)
	}
	if req.PerPostRates != nil {
		client.PerPostRates = toJSONMap(*req.PerPostRates)
	}
	if req.FixedPaymentDay != nil {
		client.FixedPaymentDay = req.FixedPaymentDay
	}
	if req.Status != nil {
		client.Status = *req.Status
	}
}

func buildTiers(genID *snowflake.Node, clientID snowflake.ID, inputs []domain.TierInput, now time.Time) []domain.Tier {
	tiers := make([]domain.Tier, 0, len(inputs))
	for i, in := range inputs {
		paymentType := in.PaymentType
		if paymentType == "" {
			paymentType = domain.BillingModeMonthly
		}
		tiers = append(tiers, domain.Tier{
			ID:             genID.Generate(),
			ClientID:       clientID,
			Position:       i,
			Amount:         in.Amount,
			DurationMonths: in.DurationMonths,
			PaymentType:    paymentType,
			Services:       toJSONMap(in.Services),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return tiers
}

func validateTiers(inputs []domain.TierInput) error {
	for _, in := range inputs {
		if in.DurationMonths <= 0 || in.Amount < 0 {
			return domain.ErrInvalidTier
		}
		if in.PaymentType != "" && in.PaymentType != domain.BillingModeMonthly && in.PaymentType != domain.BillingModeWeekly {
			return domain.ErrInvalidTier
		}
	}
	return nil
}

func validBillingMode(mode domain.BillingMode) bool {
	switch mode {
	case domain.BillingModeMonthly, domain.BillingModeWeekly, domain.BillingModePerPost:
		return true
	}
	return false
}

func validStatus(status domain.ClientStatus) bool {
	switch status {
	case domain.ClientStatusActive, domain.ClientStatusInactive, domain.ClientStatusPending, domain.ClientStatusArchived:
		return true
	}
	return false
}

func toJSONMap(m map[string]float64) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}
