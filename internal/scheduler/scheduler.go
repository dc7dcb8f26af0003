// Package scheduler runs the periodic reconciliation sweep that keeps stored
// tier state consistent with payment history.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/clock"
	"github.com/smallbiznis/agencydesk/internal/config"
	obsmetrics "github.com/smallbiznis/agencydesk/internal/observability/metrics"
	"github.com/smallbiznis/agencydesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepLockKey = "agencydesk:sweep:reconcile"

var ErrInvalidConfig = errors.New("scheduler requires db, logger, billing service and clock")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	BillingSvc billingdomain.Service
	BillingCfg *config.BillingConfigHolder
	Clock      clock.Clock
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	billingSvc billingdomain.Service
	billingCfg *config.BillingConfigHolder
	clock      clock.Clock
	locker     *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.BillingSvc == nil || p.BillingCfg == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		billingSvc: p.BillingSvc,
		billingCfg: p.BillingCfg,
		clock:      p.Clock,
		locker:     p.Locker,
	}, nil
}

// RunOnce performs a single reconciliation sweep. The redis lock keeps the
// sweep single-flight across replicas; losing the lock race is not an error.
func (s *Scheduler) RunOnce(parent context.Context) error {
	billing := s.billingCfg.Get()
	ttl := time.Duration(billing.SweepLockTTLSeconds) * time.Second

	token, acquired, err := s.locker.TryLock(parent, sweepLockKey, ttl)
	if err != nil {
		return fmt.Errorf("sweep lock: %w", err)
	}
	if !acquired {
		s.log.Debug("sweep already running elsewhere, skipping")
		return nil
	}
	defer func() {
		if releaseErr := s.locker.Release(context.WithoutCancel(parent), sweepLockKey, token); releaseErr != nil {
			s.log.Warn("sweep lock release failed", zap.Error(releaseErr))
		}
	}()

	return s.runJob(parent, "reconcile_sweep", billing.SweepBatchSize, s.cfg.JobTimeout, s.reconcileSweep)
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, batchSize int) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	sweep := obsmetrics.Sweep()
	sweep.IncRun(name)

	err := fn(ctx, batchSize)
	sweep.ObserveDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	sweep.IncError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Soft timeout: the next tick resumes where this one stopped.
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reconcileSweep pages through active tiered clients and reconciles each one.
// Reconciliation is idempotent, so overlap with a concurrent payment write
// converges on the next sweep.
func (s *Scheduler) reconcileSweep(ctx context.Context, batchSize int) error {
	sweep := obsmetrics.Sweep()
	var jobErr error
	var lastID snowflake.ID

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		ids, err := s.fetchClientsForSweep(ctx, lastID, batchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}
		if len(ids) == 0 {
			return jobErr
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}

			result, err := s.billingSvc.Reconcile(ctx, id.String())
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				sweep.IncError("reconcile_sweep", err)
				s.log.Warn("client reconcile failed",
					zap.String("client_id", id.String()),
					zap.Error(err),
				)
				continue
			}
			if result.Changed {
				sweep.IncReconciled()
				s.log.Info("client tier state reconciled",
					zap.String("client_id", id.String()),
					zap.Int("tier_index", result.TierIndex),
					zap.Int("payment_count", result.PaymentCount),
				)
			} else {
				sweep.IncUnchanged()
			}
		}

		lastID = ids[len(ids)-1]
	}
}

func (s *Scheduler) fetchClientsForSweep(ctx context.Context, afterID snowflake.ID, batchSize int) ([]snowflake.ID, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var ids []snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&clientdomain.Client{}).
		Where("status = ? AND id > ?", clientdomain.ClientStatusActive, afterID).
		Where("EXISTS (SELECT 1 FROM client_tiers WHERE client_tiers.client_id = clients.id)").
		Order("id ASC").
		Limit(batchSize).
		Pluck("id", &ids).Error
	return ids, err
}
