// Package domain implements tier progression and rate resolution for client
// billing schedules.
package domain

import (
	"time"

	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"gorm.io/datatypes"
)

// TierProgress locates a client inside its tier schedule.
type TierProgress struct {
	// Index is the current tier position, -1 when the schedule is empty.
	Index int `json:"index"`
	// IsComplete is true once every tier's duration has been paid through.
	IsComplete bool `json:"is_complete"`
	// PaymentsIntoTier counts completed payments inside the current tier.
	PaymentsIntoTier int `json:"payments_into_tier"`
}

// ResolveTier maps a completed-payment count onto the tier schedule. Tier
// durations are paid cycles, so a schedule of [3, 6] is complete at the ninth
// payment. An empty schedule resolves as complete with index -1; callers fall
// back to the flat or final rate path.
func ResolveTier(tiers []clientdomain.Tier, completedPayments int) TierProgress {
	if len(tiers) == 0 {
		return TierProgress{Index: -1, IsComplete: true}
	}

	boundary := 0
	for i, tier := range tiers {
		prev := boundary
		boundary += tier.DurationMonths
		if completedPayments < boundary {
			return TierProgress{
				Index:            i,
				PaymentsIntoTier: completedPayments - prev,
			}
		}
	}

	last := len(tiers) - 1
	return TierProgress{
		Index:            last,
		IsComplete:       true,
		PaymentsIntoTier: tiers[last].DurationMonths,
	}
}

// ApproximateTierByTime estimates tier progress from elapsed calendar months
// since the client was created. It is an approximation kept for contexts with
// no payment history; ResolveTier against the completed-payment count is
// authoritative.
func ApproximateTierByTime(tiers []clientdomain.Tier, createdAt, now time.Time) TierProgress {
	return ResolveTier(tiers, monthsBetween(createdAt, now))
}

// AmountDue computes the amount for the client's next billing cycle.
//
// Per-post clients are not resolvable from the client record alone; this
// path returns 0 and the ledger-backed postledger amount is authoritative.
func AmountDue(client *clientdomain.Client, progress TierProgress) float64 {
	if client == nil {
		return 0
	}

	if client.BillingMode == clientdomain.BillingModePerPost {
		return 0
	}

	if client.Tiered() && !progress.IsComplete {
		if progress.Index < 0 || progress.Index >= len(client.Tiers) {
			return 0
		}
		tier := client.Tiers[progress.Index]
		return tier.Amount + servicesSum(tier.Services)
	}

	if client.Tiered() {
		// Schedule exhausted: bill the final flat structure.
		return flatRate(client.BillingMode, client.FinalMonthlyRate, client.FinalWeeklyRate) + servicesSum(client.FinalServices)
	}

	return flatRate(client.BillingMode, client.MonthlyRate, client.WeeklyRate) + servicesSum(client.Services)
}

// CadenceFor returns the billing cadence that applies to the client's next
// cycle: the current tier's payment type while mid-schedule, the client's
// billing mode otherwise.
func CadenceFor(client *clientdomain.Client, progress TierProgress) clientdomain.BillingMode {
	if client == nil {
		return clientdomain.BillingModeMonthly
	}
	if client.Tiered() && !progress.IsComplete && progress.Index >= 0 && progress.Index < len(client.Tiers) {
		if pt := client.Tiers[progress.Index].PaymentType; pt != "" {
			return pt
		}
	}
	return client.BillingMode
}

func flatRate(mode clientdomain.BillingMode, monthly, weekly *float64) float64 {
	switch mode {
	case clientdomain.BillingModeWeekly:
		return deref(weekly)
	default:
		return deref(monthly)
	}
}

func servicesSum(services datatypes.JSONMap) float64 {
	var total float64
	for _, v := range services {
		total += Numeric(v)
	}
	return total
}

// Numeric coerces a JSON map value to float64, returning 0 for anything
// non-numeric. JSON round-trips store numbers as float64 but values set in Go
// may still be ints.
func Numeric(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
