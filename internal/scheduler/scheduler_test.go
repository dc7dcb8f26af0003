package scheduler

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
	"github.com/smallbiznis/agencydesk/internal/config"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T) (*Scheduler, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&clientdomain.Tier{},
		&paymentdomain.Payment{},
	))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewBillingConfigHolder()
	require.NoError(t, err)

	log := zap.NewNop()
	sched, err := New(Params{
		DB:         db,
		Log:        log,
		BillingSvc: billingservice.New(billingservice.ServiceParam{DB: db, Log: log}),
		BillingCfg: holder,
		Clock:      clock.NewFakeClock(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return sched, db, genID
}

func seedDriftedClient(t *testing.T, db *gorm.DB, genID *snowflake.Node) *clientdomain.Client {
	t.Helper()

	client := &clientdomain.Client{
		ID:               genID.Generate(),
		Name:             "Drifted Co",
		BillingMode:      clientdomain.BillingModeMonthly,
		Status:           clientdomain.ClientStatusActive,
		CurrentTierIndex: 0,
	}
	require.NoError(t, db.Create(client).Error)

	tiers := []clientdomain.Tier{
		{ID: genID.Generate(), ClientID: client.ID, Position: 0, Amount: 500, DurationMonths: 3, PaymentType: clientdomain.BillingModeMonthly},
		{ID: genID.Generate(), ClientID: client.ID, Position: 1, Amount: 750, DurationMonths: 6, PaymentType: clientdomain.BillingModeMonthly},
	}
	require.NoError(t, db.Create(&tiers).Error)

	// Four completed payments on record while the stored state still says
	// tier zero with no payments counted.
	for i := 0; i < 4; i++ {
		payment := &paymentdomain.Payment{
			ID:          genID.Generate(),
			ClientID:    client.ID,
			Amount:      500,
			PaymentDate: time.Date(2025, time.November+time.Month(i), 15, 0, 0, 0, 0, time.UTC),
			Status:      paymentdomain.PaymentStatusCompleted,
			Type:        paymentdomain.PaymentTypePayment,
		}
		require.NoError(t, db.Create(payment).Error)
	}
	return client
}

func TestRunOnce_ReconcilesDriftedClients(t *testing.T) {
	sched, db, genID := newTestScheduler(t)
	client := seedDriftedClient(t, db, genID)

	require.NoError(t, sched.RunOnce(context.Background()))

	var stored clientdomain.Client
	require.NoError(t, db.First(&stored, "id = ?", client.ID).Error)
	assert.Equal(t, 4, stored.PaymentCount)
	assert.Equal(t, 1, stored.CurrentTierIndex)
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	sched, db, genID := newTestScheduler(t)
	client := seedDriftedClient(t, db, genID)

	require.NoError(t, sched.RunOnce(context.Background()))
	first := clientdomain.Client{}
	require.NoError(t, db.First(&first, "id = ?", client.ID).Error)

	require.NoError(t, sched.RunOnce(context.Background()))
	second := clientdomain.Client{}
	require.NoError(t, db.First(&second, "id = ?", client.ID).Error)

	assert.Equal(t, first.PaymentCount, second.PaymentCount)
	assert.Equal(t, first.CurrentTierIndex, second.CurrentTierIndex)
}

func TestRunOnce_SweepsOnlyActiveTieredClients(t *testing.T) {
	sched, db, genID := newTestScheduler(t)

	flat := &clientdomain.Client{
		ID:          genID.Generate(),
		Name:        "Flat Rate LLC",
		BillingMode: clientdomain.BillingModeMonthly,
		Status:      clientdomain.ClientStatusActive,
	}
	require.NoError(t, db.Create(flat).Error)

	archived := seedDriftedClient(t, db, genID)
	require.NoError(t, db.Model(archived).Update("status", clientdomain.ClientStatusArchived).Error)

	inactive := seedDriftedClient(t, db, genID)
	require.NoError(t, db.Model(inactive).Update("status", clientdomain.ClientStatusInactive).Error)

	require.NoError(t, sched.RunOnce(context.Background()))

	for _, id := range []snowflake.ID{archived.ID, inactive.ID} {
		var stored clientdomain.Client
		require.NoError(t, db.First(&stored, "id = ?", id).Error)
		assert.Zero(t, stored.PaymentCount)
	}
}

func TestFetchClientsForSweep_Pages(t *testing.T) {
	sched, db, genID := newTestScheduler(t)

	var all []snowflake.ID
	for i := 0; i < 5; i++ {
		client := seedDriftedClient(t, db, genID)
		all = append(all, client.ID)
	}

	first, err := sched.fetchClientsForSweep(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, all[0], first[0])

	second, err := sched.fetchClientsForSweep(context.Background(), first[len(first)-1], 10)
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, all[2], second[0])
}
