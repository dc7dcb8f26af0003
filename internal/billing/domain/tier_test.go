package domain

import (
	"testing"
	"time"

	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func twoTierSchedule() []clientdomain.Tier {
	return []clientdomain.Tier{
		{Position: 0, Amount: 500, DurationMonths: 3, PaymentType: clientdomain.BillingModeMonthly},
		{Position: 1, Amount: 750, DurationMonths: 6, PaymentType: clientdomain.BillingModeMonthly},
	}
}

func TestResolveTier(t *testing.T) {
	tiers := twoTierSchedule()

	tests := []struct {
		name      string
		completed int
		wantIndex int
		wantDone  bool
		wantInto  int
	}{
		{"no payments starts first tier", 0, 0, false, 0},
		{"last payment of first tier", 2, 0, false, 2},
		{"third payment crosses into second tier", 3, 1, false, 0},
		{"last payment of second tier", 8, 1, false, 5},
		{"ninth payment completes the schedule", 9, 1, true, 6},
		{"payments past the schedule stay complete", 20, 1, true, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTier(tiers, tt.completed)
			assert.Equal(t, tt.wantIndex, got.Index)
			assert.Equal(t, tt.wantDone, got.IsComplete)
			assert.Equal(t, tt.wantInto, got.PaymentsIntoTier)
		})
	}
}

func TestResolveTier_EmptySchedule(t *testing.T) {
	got := ResolveTier(nil, 5)
	assert.Equal(t, -1, got.Index)
	assert.True(t, got.IsComplete)
}

func TestApproximateTierByTime(t *testing.T) {
	tiers := twoTierSchedule()
	createdAt := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		now       time.Time
		wantIndex int
		wantDone  bool
	}{
		{"same month", time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC), 0, false},
		{"three months in", time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC), 1, false},
		{"nine months in", time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC), 1, true},
		{"day-of-month not yet reached", time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApproximateTierByTime(tiers, createdAt, tt.now)
			assert.Equal(t, tt.wantIndex, got.Index)
			assert.Equal(t, tt.wantDone, got.IsComplete)
		})
	}
}

func TestAmountDue(t *testing.T) {
	monthly := 1200.0
	finalMonthly := 900.0

	tieredClient := &clientdomain.Client{
		BillingMode:      clientdomain.BillingModeMonthly,
		MonthlyRate:      &monthly,
		FinalMonthlyRate: &finalMonthly,
		FinalServices:    datatypes.JSONMap{"seo": 100.0},
		Tiers: []clientdomain.Tier{
			{Position: 0, Amount: 500, DurationMonths: 3, Services: datatypes.JSONMap{"ads": 50.0}},
			{Position: 1, Amount: 750, DurationMonths: 6},
		},
	}

	t.Run("mid-schedule bills the current tier plus its services", func(t *testing.T) {
		got := AmountDue(tieredClient, TierProgress{Index: 0})
		assert.Equal(t, 550.0, got)
	})

	t.Run("second tier without services bills the tier amount", func(t *testing.T) {
		got := AmountDue(tieredClient, TierProgress{Index: 1})
		assert.Equal(t, 750.0, got)
	})

	t.Run("exhausted schedule bills the final structure", func(t *testing.T) {
		got := AmountDue(tieredClient, TierProgress{Index: 1, IsComplete: true})
		assert.Equal(t, 1000.0, got)
	})

	t.Run("flat client bills the base rate plus services", func(t *testing.T) {
		flat := &clientdomain.Client{
			BillingMode: clientdomain.BillingModeMonthly,
			MonthlyRate: &monthly,
			Services:    datatypes.JSONMap{"reporting": 75.0},
		}
		got := AmountDue(flat, TierProgress{Index: -1, IsComplete: true})
		assert.Equal(t, 1275.0, got)
	})

	t.Run("weekly client uses the weekly rate", func(t *testing.T) {
		weekly := 300.0
		flat := &clientdomain.Client{
			BillingMode: clientdomain.BillingModeWeekly,
			WeeklyRate:  &weekly,
		}
		got := AmountDue(flat, TierProgress{Index: -1, IsComplete: true})
		assert.Equal(t, 300.0, got)
	})

	t.Run("per-post client resolves to zero here", func(t *testing.T) {
		perPost := &clientdomain.Client{
			BillingMode:  clientdomain.BillingModePerPost,
			PerPostRates: datatypes.JSONMap{"instagram": 25.0},
		}
		got := AmountDue(perPost, TierProgress{Index: -1, IsComplete: true})
		assert.Equal(t, 0.0, got)
	})

	t.Run("nil client resolves to zero", func(t *testing.T) {
		assert.Equal(t, 0.0, AmountDue(nil, TierProgress{}))
	})

	t.Run("out-of-range index resolves to zero", func(t *testing.T) {
		got := AmountDue(tieredClient, TierProgress{Index: 7})
		assert.Equal(t, 0.0, got)
	})
}

func TestCadenceFor(t *testing.T) {
	weeklyTier := &clientdomain.Client{
		BillingMode: clientdomain.BillingModeMonthly,
		Tiers: []clientdomain.Tier{
			{Position: 0, DurationMonths: 3, PaymentType: clientdomain.BillingModeWeekly},
		},
	}

	t.Run("mid-schedule uses the tier payment type", func(t *testing.T) {
		got := CadenceFor(weeklyTier, TierProgress{Index: 0})
		assert.Equal(t, clientdomain.BillingModeWeekly, got)
	})

	t.Run("complete schedule falls back to the billing mode", func(t *testing.T) {
		got := CadenceFor(weeklyTier, TierProgress{Index: 0, IsComplete: true})
		assert.Equal(t, clientdomain.BillingModeMonthly, got)
	})

	t.Run("nil client defaults to monthly", func(t *testing.T) {
		assert.Equal(t, clientdomain.BillingModeMonthly, CadenceFor(nil, TierProgress{}))
	})
}

func TestNumeric(t *testing.T) {
	assert.Equal(t, 25.0, Numeric(25.0))
	assert.Equal(t, 25.0, Numeric(25))
	assert.Equal(t, 25.0, Numeric(int64(25)))
	assert.Equal(t, 0.0, Numeric("25"))
	assert.Equal(t, 0.0, Numeric(nil))
}
