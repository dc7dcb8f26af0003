package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/agencydesk/internal/clock"
	"github.com/smallbiznis/agencydesk/internal/expense/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Expense{}))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: genID,
		Clock: clock.NewFakeClock(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)),
	})
}

func strptr(s string) *string { return &s }

func timeptr(t time.Time) *time.Time { return &t }

func TestCreate(t *testing.T) {
	svc := newTestService(t)

	expense, err := svc.Create(context.Background(), domain.CreateRequest{
		Label:  "Canva subscription",
		Amount: 12.99,
	})
	require.NoError(t, err)
	// Defaults to the clock when no date is given.
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), expense.IncurredAt)

	_, err = svc.Create(context.Background(), domain.CreateRequest{Label: " ", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)

	_, err = svc.Create(context.Background(), domain.CreateRequest{Label: "X", Amount: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestList_FiltersByMonth(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateRequest{
		Label:      "March ads",
		Amount:     300,
		IncurredAt: timeptr(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), domain.CreateRequest{
		Label:      "February ads",
		Amount:     250,
		IncurredAt: timeptr(time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	expenses, err := svc.List(context.Background(), "2026-03")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "March ads", expenses[0].Label)

	expenses, err = svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, expenses, 2)

	_, err = svc.List(context.Background(), "Feb 2026")
	assert.ErrorIs(t, err, domain.ErrInvalidMonthYear)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)

	expense, err := svc.Create(context.Background(), domain.CreateRequest{Label: "One off", Amount: 40})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), expense.ID.String()))
	err = svc.Delete(context.Background(), expense.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMonthlyTotal(t *testing.T) {
	svc := newTestService(t)
	march := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)

	seed := []domain.CreateRequest{
		{Label: "Ads", Amount: 300, Category: strptr("marketing"), IncurredAt: timeptr(march)},
		{Label: "Boosts", Amount: 120, Category: strptr("marketing"), IncurredAt: timeptr(march)},
		{Label: "Stock photos", Amount: 45, IncurredAt: timeptr(march)},
		{Label: "April retainer", Amount: 999, IncurredAt: timeptr(march.AddDate(0, 1, 0))},
	}
	for _, req := range seed {
		_, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
	}

	summary, err := svc.MonthlyTotal(context.Background(), "2026-03")
	require.NoError(t, err)

	assert.Equal(t, "2026-03", summary.MonthYear)
	assert.Equal(t, 465.0, summary.Total)
	assert.Equal(t, 420.0, summary.ByCategory["marketing"])
	assert.Equal(t, 45.0, summary.ByCategory["uncategorized"])
}

func TestMonthlyTotal_DefaultsToCurrentMonth(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateRequest{Label: "Now-ish", Amount: 80})
	require.NoError(t, err)

	summary, err := svc.MonthlyTotal(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03", summary.MonthYear)
	assert.Equal(t, 80.0, summary.Total)
}
