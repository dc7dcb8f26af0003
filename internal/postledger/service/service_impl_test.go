package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingservice "github.com/smallbiznis/agencydesk/internal/billing/service"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/clock"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	postledgerdomain "github.com/smallbiznis/agencydesk/internal/postledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock *clock.FakeClock
	svc   postledgerdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&clientdomain.Tier{},
		&paymentdomain.Payment{},
		&postledgerdomain.PostCount{},
	))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	billingSvc := billingservice.New(billingservice.ServiceParam{DB: db, Log: log})

	return &fixture{
		db:    db,
		genID: genID,
		clock: fake,
		svc: New(ServiceParam{
			DB:         db,
			Log:        log,
			GenID:      genID,
			Clock:      fake,
			BillingSvc: billingSvc,
		}),
	}
}

func (f *fixture) seedPerPostClient(t *testing.T, rates datatypes.JSONMap) *clientdomain.Client {
	t.Helper()

	day := int16(5)
	client := &clientdomain.Client{
		ID:              f.genID.Generate(),
		Name:            "Brightline Co",
		BillingMode:     clientdomain.BillingModePerPost,
		PerPostRates:    rates,
		FixedPaymentDay: &day,
		Status:          clientdomain.ClientStatusActive,
		CreatedAt:       f.clock.Now(),
		UpdatedAt:       f.clock.Now(),
	}
	require.NoError(t, f.db.Create(client).Error)
	return client
}

const month = "2026-03"

func TestIncrement_CreatesRowLazily(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, datatypes.JSONMap{"instagram": 20.0})

	pc, err := f.svc.Increment(context.Background(), client.ID.String(), "instagram", month)
	require.NoError(t, err)
	assert.Equal(t, 1, pc.Count)

	pc, err = f.svc.Increment(context.Background(), client.ID.String(), "instagram", month)
	require.NoError(t, err)
	assert.Equal(t, 2, pc.Count)

	var count int64
	require.NoError(t, f.db.Model(&postledgerdomain.PostCount{}).
		Where("client_id = ?", client.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIncrement_NormalizesPlatform(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, datatypes.JSONMap{"tiktok": 30.0})

	_, err := f.svc.Increment(context.Background(), client.ID.String(), "  TikTok ", month)
	require.NoError(t, err)

	pc, err := f.svc.Increment(context.Background(), client.ID.String(), "tiktok", month)
	require.NoError(t, err)
	assert.Equal(t, 2, pc.Count)
}

func TestIncrement_Validation(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, nil)

	tests := []struct {
		name      string
		clientID  string
		platform  string
		monthYear string
		wantErr   error
	}{
		{"bad client id", "abc", "instagram", month, postledgerdomain.ErrInvalidClient},
		{"empty platform", client.ID.String(), "   ", month, postledgerdomain.ErrInvalidPlatform},
		{"bad month", client.ID.String(), "instagram", "March 2026", postledgerdomain.ErrInvalidMonthYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Increment(context.Background(), tt.clientID, tt.platform, tt.monthYear)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecrement_ClampsAtZero(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, nil)

	_, err := f.svc.Increment(context.Background(), client.ID.String(), "instagram", month)
	require.NoError(t, err)

	pc, err := f.svc.Decrement(context.Background(), client.ID.String(), "instagram", month)
	require.NoError(t, err)
	assert.Zero(t, pc.Count)

	// Already at zero; stays there.
	pc, err = f.svc.Decrement(context.Background(), client.ID.String(), "instagram", month)
	require.NoError(t, err)
	assert.Zero(t, pc.Count)
}

func TestDecrement_MissingRowIsNoop(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, nil)

	pc, err := f.svc.Decrement(context.Background(), client.ID.String(), "youtube", month)
	require.NoError(t, err)
	assert.Zero(t, pc.Count)

	var count int64
	require.NoError(t, f.db.Model(&postledgerdomain.PostCount{}).
		Where("client_id = ?", client.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSetCount(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, nil)

	pc, err := f.svc.SetCount(context.Background(), client.ID.String(), "instagram", month, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, pc.Count)

	pc, err = f.svc.SetCount(context.Background(), client.ID.String(), "instagram", month, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pc.Count)

	_, err = f.svc.SetCount(context.Background(), client.ID.String(), "instagram", month, -1)
	assert.ErrorIs(t, err, postledgerdomain.ErrInvalidCount)
}

func TestAmountDue_PricesLedger(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, datatypes.JSONMap{"instagram": 25.0, "tiktok": 40.0})

	for i := 0; i < 4; i++ {
		_, err := f.svc.Increment(context.Background(), client.ID.String(), "instagram", month)
		require.NoError(t, err)
	}
	// No configured rate; counted but priced at zero.
	_, err := f.svc.Increment(context.Background(), client.ID.String(), "youtube", month)
	require.NoError(t, err)

	breakdown, err := f.svc.AmountDue(context.Background(), client.ID.String(), month)
	require.NoError(t, err)

	assert.Equal(t, 100.0, breakdown.Total)
	assert.Equal(t, 4, breakdown.Counts["instagram"])
	assert.Equal(t, 100.0, breakdown.Amounts["instagram"])
	// Rate-only platform shows up with a zero count.
	assert.Equal(t, 0, breakdown.Counts["tiktok"])
	assert.Equal(t, 1, breakdown.Counts["youtube"])
	assert.Equal(t, 0.0, breakdown.Amounts["youtube"])
}

func TestSettle(t *testing.T) {
	f := newFixture(t)
	client := f.seedPerPostClient(t, datatypes.JSONMap{"instagram": 25.0, "tiktok": 40.0})

	for i := 0; i < 3; i++ {
		_, err := f.svc.Increment(context.Background(), client.ID.String(), "instagram", month)
		require.NoError(t, err)
	}
	_, err := f.svc.Increment(context.Background(), client.ID.String(), "tiktok", month)
	require.NoError(t, err)

	payment, err := f.svc.Settle(context.Background(), client.ID.String(), month)
	require.NoError(t, err)

	// 3*25 + 1*40
	assert.Equal(t, 115.0, payment.Amount)
	assert.Equal(t, paymentdomain.PaymentTypePost, payment.Type)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.PostCount)
	assert.Equal(t, 4, *payment.PostCount)

	rows, err := f.svc.List(context.Background(), client.ID.String(), month)
	require.NoError(t, err)
	for _, pc := range rows {
		assert.Zero(t, pc.Count)
	}

	var stored clientdomain.Client
	require.NoError(t, f.db.First(&stored, "id = ?", client.ID).Error)
	require.NotNil(t, stored.NextPayment)
	// Fixed day 5 has passed in March, so the due date rolls to April.
	assert.Equal(t, time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC), stored.NextPayment.UTC())
}

func TestSettle_Guards(t *testing.T) {
	f := newFixture(t)

	t.Run("archived client", func(t *testing.T) {
		client := f.seedPerPostClient(t, nil)
		require.NoError(t, f.db.Model(client).Update("status", clientdomain.ClientStatusArchived).Error)

		_, err := f.svc.Settle(context.Background(), client.ID.String(), month)
		assert.ErrorIs(t, err, postledgerdomain.ErrClientArchived)
	})

	t.Run("not per-post", func(t *testing.T) {
		monthly := 900.0
		flat := &clientdomain.Client{
			ID:          f.genID.Generate(),
			Name:        "Flat Rate LLC",
			BillingMode: clientdomain.BillingModeMonthly,
			MonthlyRate: &monthly,
			Status:      clientdomain.ClientStatusActive,
		}
		require.NoError(t, f.db.Create(flat).Error)

		_, err := f.svc.Settle(context.Background(), flat.ID.String(), month)
		assert.ErrorIs(t, err, postledgerdomain.ErrNotPerPost)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := f.svc.Settle(context.Background(), f.genID.Generate().String(), month)
		assert.ErrorIs(t, err, postledgerdomain.ErrClientNotFound)
	})
}
