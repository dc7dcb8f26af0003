package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	postledgerdomain "github.com/smallbiznis/agencydesk/internal/postledger/domain"
	"gorm.io/gorm"
)

type dashboardSummary struct {
	MonthYear         string                       `json:"month_year"`
	ActiveClients     int64                        `json:"active_clients"`
	ReceivedThisMonth float64                      `json:"received_this_month"`
	ProjectedRevenue  float64                      `json:"projected_revenue"`
	ExpectedUpcoming  float64                      `json:"expected_upcoming"`
	Upcoming          []clientdomain.UpcomingEntry `json:"upcoming"`
	MonthlyPayroll    float64                      `json:"monthly_payroll"`
	MonthlyExpenses   float64                      `json:"monthly_expenses"`
}

// DashboardSummary aggregates the numbers the dashboard landing page shows.
func (s *Server) DashboardSummary(c *gin.Context) {
	ctx := c.Request.Context()
	monthYear := strings.TrimSpace(c.Query("month_year"))
	if monthYear == "" {
		monthYear = time.Now().UTC().Format(postledgerdomain.MonthYearLayout)
	}
	monthStart, err := time.Parse(postledgerdomain.MonthYearLayout, monthYear)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	monthEnd := monthStart.AddDate(0, 1, 0)

	activeClients, err := s.clientSvc.CountActive(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	upcoming, err := s.clientSvc.Upcoming(ctx, clientdomain.UpcomingRequest{})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var expected float64
	for _, entry := range upcoming {
		expected += entry.AmountDue
	}

	var received float64
	err = s.db.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("status = ? AND payment_date >= ? AND payment_date < ?",
			paymentdomain.PaymentStatusCompleted, monthStart, monthEnd).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&received).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}

	projected, err := s.projectedRevenue(ctx, monthYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payroll, err := s.teamSvc.MonthlyPayroll(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	expenses, err := s.expenseSvc.MonthlyTotal(ctx, monthYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dashboardSummary{
		MonthYear:         monthYear,
		ActiveClients:     activeClients,
		ReceivedThisMonth: received,
		ProjectedRevenue:  projected,
		ExpectedUpcoming:  expected,
		Upcoming:          upcoming,
		MonthlyPayroll:    payroll,
		MonthlyExpenses:   expenses.Total,
	}})
}

// projectedRevenue sums what each active client is expected to bring in for
// the month: tiered and flat clients through rate resolution, per-post clients
// through their current ledger.
func (s *Server) projectedRevenue(ctx context.Context, monthYear string) (float64, error) {
	var clients []*clientdomain.Client
	err := s.db.WithContext(ctx).Model(&clientdomain.Client{}).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("status = ?", clientdomain.ClientStatusActive).
		Find(&clients).Error
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var total float64
	for _, client := range clients {
		if client.BillingMode == clientdomain.BillingModePerPost {
			breakdown, err := s.postledgerSvc.AmountDue(ctx, client.ID.String(), monthYear)
			if err != nil {
				return 0, err
			}
			total += breakdown.Total
			continue
		}

		progress := billingdomain.ResolveTier(client.Tiers, client.PaymentCount)
		if client.Tiered() && client.PaymentCount == 0 {
			progress = billingdomain.ApproximateTierByTime(client.Tiers, client.CreatedAt, now)
		}
		total += billingdomain.AmountDue(client, progress)
	}
	return total, nil
}
