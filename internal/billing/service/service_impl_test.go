package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&clientdomain.Tier{},
		&paymentdomain.Payment{},
	))
	return db
}

func seedTieredClient(t *testing.T, db *gorm.DB, genID *snowflake.Node) *clientdomain.Client {
	t.Helper()

	client := &clientdomain.Client{
		ID:               genID.Generate(),
		Name:             "Acme Studio",
		BillingMode:      clientdomain.BillingModeMonthly,
		CurrentTierIndex: 0,
		Status:           clientdomain.ClientStatusActive,
	}
	require.NoError(t, db.Create(client).Error)
	tiers := []clientdomain.Tier{
		{ID: genID.Generate(), ClientID: client.ID, Position: 0, Amount: 500, DurationMonths: 3, PaymentType: clientdomain.BillingModeMonthly},
		{ID: genID.Generate(), ClientID: client.ID, Position: 1, Amount: 750, DurationMonths: 6, PaymentType: clientdomain.BillingModeMonthly},
	}
	require.NoError(t, db.Create(&tiers).Error)
	return client
}

func insertCompletedPayments(t *testing.T, db *gorm.DB, genID *snowflake.Node, clientID snowflake.ID, n int) {
	t.Helper()

	base := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		payment := &paymentdomain.Payment{
			ID:          genID.Generate(),
			ClientID:    clientID,
			Amount:      500,
			PaymentDate: base.AddDate(0, i, 0),
			Status:      paymentdomain.PaymentStatusCompleted,
			Type:        paymentdomain.PaymentTypePayment,
		}
		require.NoError(t, db.Create(payment).Error)
	}
}

func TestReconcile_AdvancesTierFromPaymentCount(t *testing.T) {
	db := newTestDB(t)
	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(ServiceParam{DB: db, Log: zap.NewNop()})
	client := seedTieredClient(t, db, genID)
	insertCompletedPayments(t, db, genID, client.ID, 3)

	result, err := svc.Reconcile(context.Background(), client.ID.String())
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, 1, result.TierIndex)
	assert.Equal(t, 3, result.PaymentCount)
	assert.False(t, result.TierComplete)

	var stored clientdomain.Client
	require.NoError(t, db.First(&stored, "id = ?", client.ID).Error)
	assert.Equal(t, 1, stored.CurrentTierIndex)
	assert.Equal(t, 3, stored.PaymentCount)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(ServiceParam{DB: db, Log: zap.NewNop()})
	client := seedTieredClient(t, db, genID)
	insertCompletedPayments(t, db, genID, client.ID, 4)

	first, err := svc.Reconcile(context.Background(), client.ID.String())
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := svc.Reconcile(context.Background(), client.ID.String())
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.TierIndex, second.TierIndex)
	assert.Equal(t, first.PaymentCount, second.PaymentCount)
}

func TestReconcile_ScheduleCompletion(t *testing.T) {
	db := newTestDB(t)
	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(ServiceParam{DB: db, Log: zap.NewNop()})
	client := seedTieredClient(t, db, genID)
	insertCompletedPayments(t, db, genID, client.ID, 9)

	result, err := svc.Reconcile(context.Background(), client.ID.String())
	require.NoError(t, err)

	assert.True(t, result.TierComplete)
	assert.Equal(t, 1, result.TierIndex)
	assert.Equal(t, 9, result.PaymentCount)
}

func TestReconcile_IgnoresPendingPayments(t *testing.T) {
	db := newTestDB(t)
	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(ServiceParam{DB: db, Log: zap.NewNop()})
	client := seedTieredClient(t, db, genID)
	insertCompletedPayments(t, db, genID, client.ID, 2)

	pending := &paymentdomain.Payment{
		ID:          genID.Generate(),
		ClientID:    client.ID,
		Amount:      500,
		PaymentDate: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		Status:      paymentdomain.PaymentStatusPending,
		Type:        paymentdomain.PaymentTypePayment,
	}
	require.NoError(t, db.Create(pending).Error)

	result, err := svc.Reconcile(context.Background(), client.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, result.PaymentCount)
	assert.Equal(t, 0, result.TierIndex)
}

func TestReconcile_UnknownClient(t *testing.T) {
	db := newTestDB(t)
	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(ServiceParam{DB: db, Log: zap.NewNop()})

	_, err = svc.Reconcile(context.Background(), genID.Generate().String())
	assert.ErrorIs(t, err, billingdomain.ErrClientNotFound)
}

func TestReconcile_InvalidID(t *testing.T) {
	db := newTestDB(t)
	svc := New(ServiceParam{DB: db, Log: zap.NewNop()})

	_, err := svc.Reconcile(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, billingdomain.ErrInvalidClient)
}
