// Package detect implements the four anomaly rules and their aggregation.
//
// Each rule is a pure function over a read-only transaction batch: it never
// mutates its input and returns a freshly built flag slice, emitted in batch
// order so repeated runs over the same input produce identical output. Rules
// are independent; the same transaction may be flagged by several of them.
package detect

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

// SLAPenaltyPerDayGBP is the internal ops cost rate applied per day of late
// delivery. It is a fixed constant of the rule, not a configuration knob;
// changing it silently changes financial outputs.
const SLAPenaltyPerDayGBP = 150.0

// Params carries the rule thresholds for one detection run.
type Params struct {
	DuplicateWindowDays    int
	PriceVarianceThreshold float64
	SLAGraceDays           int
	VolumeSpikeSigma       float64
	VolumeRollingWindow    int
}

// DefaultParams returns the standard thresholds.
func DefaultParams() Params {
	return Params{
		DuplicateWindowDays:    1,
		PriceVarianceThreshold: 1.15,
		SLAGraceDays:           0,
		VolumeSpikeSigma:       2.0,
		VolumeRollingWindow:    14,
	}
}

// Duplicates flags transactions sharing supplier and invoice amount (rounded
// to the nearest pound) within windowDays of an earlier transaction.
//
// Matching is all-pairs within each (supplier, amount) group, not
// nearest-predecessor: in a chain of three or more, every non-earliest member
// is flagged as long as it is within the window of at least one earlier
// member. The earliest transaction of a chain is never flagged. Leakage is
// the later transaction's full invoice amount, since it may be an erroneous
// duplicate payment.
func Duplicates(txns []domain.Transaction, windowDays int) []domain.Flag {
	type key struct {
		supplierID string
		amount     int64
	}

	groups := make(map[key][]domain.Transaction)
	for _, t := range txns {
		k := key{t.SupplierID, int64(math.Round(t.InvoiceAmount))}
		groups[k] = append(groups[k], t)
	}

	flaggedIDs := make(map[string]bool)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				delta := daysBetween(group[i].Date, group[j].Date)
				if delta <= windowDays {
					flaggedIDs[group[j].TransactionID] = true
				}
			}
		}
	}

	var flags []domain.Flag
	for _, t := range txns {
		if !flaggedIDs[t.TransactionID] {
			continue
		}
		flags = append(flags, domain.Flag{
			Transaction: t,
			Rule:        domain.RuleDuplicate,
			Detail: fmt.Sprintf("Duplicate of supplier %s invoice £%s within %dd window",
				t.SupplierID, formatGBP(t.InvoiceAmount), windowDays),
			LeakageGBP: t.InvoiceAmount,
		})
	}
	return flags
}

// PriceVariance flags invoices strictly above baseline times threshold.
// Equality with the threshold does not flag. Leakage is the excess over the
// threshold-adjusted baseline, rounded to 2 decimals.
func PriceVariance(txns []domain.Transaction, threshold float64) []domain.Flag {
	var flags []domain.Flag
	for _, t := range txns {
		ratio := t.InvoiceAmount / t.BaselineRate
		if !(ratio > threshold) {
			continue
		}
		flags = append(flags, domain.Flag{
			Transaction: t,
			Rule:        domain.RulePriceVariance,
			Detail: fmt.Sprintf("Invoice £%s is %.1f%% above baseline £%s (threshold: %.0f%%)",
				formatGBP(t.InvoiceAmount), (ratio-1)*100, formatGBP(t.BaselineRate), (threshold-1)*100),
			LeakageGBP: round2(t.InvoiceAmount - t.BaselineRate*threshold),
		})
	}
	return flags
}

// SLABreaches flags deliveries later than expected plus graceDays. Leakage
// is the breach day count times the fixed daily penalty rate.
func SLABreaches(txns []domain.Transaction, graceDays int) []domain.Flag {
	var flags []domain.Flag
	for _, t := range txns {
		breachDays := daysBetween(t.ExpectedDelivery, t.ActualDelivery) - graceDays
		if breachDays <= 0 {
			continue
		}
		flags = append(flags, domain.Flag{
			Transaction: t,
			Rule:        domain.RuleSLABreach,
			Detail: fmt.Sprintf("Delivery %d days late: expected %s, actual %s",
				breachDays, t.ExpectedDelivery.Format("2006-01-02"), t.ActualDelivery.Format("2006-01-02")),
			LeakageGBP: round2(float64(breachDays) * SLAPenaltyPerDayGBP),
			BreachDays: breachDays,
		})
	}
	return flags
}

// VolumeSpikes flags every transaction on days whose count exceeds a trailing
// rolling baseline of mean + sigma standard deviations.
//
// The baseline for a day is computed over the previous window entries of the
// day sequence actually present in the batch (sorted, current day excluded)
// and requires at least 3 prior entries before it is considered valid; early
// days without enough history cannot be flagged. The standard deviation is
// the sample deviation (n-1 denominator). Leakage is zero: this rule
// surfaces volume risk for manual review, with no direct attributable cost.
func VolumeSpikes(txns []domain.Transaction, sigma float64, window int) []domain.Flag {
	counts := make(map[time.Time]int)
	for _, t := range txns {
		counts[t.Date]++
	}

	days := make([]time.Time, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	type spikeStats struct {
		count int
		mean  float64
		std   float64
	}
	spikes := make(map[time.Time]spikeStats)
	for i, day := range days {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		prior := days[lo:i]
		if len(prior) < 3 {
			continue
		}
		var sum float64
		for _, d := range prior {
			sum += float64(counts[d])
		}
		mean := sum / float64(len(prior))
		var sq float64
		for _, d := range prior {
			diff := float64(counts[d]) - mean
			sq += diff * diff
		}
		std := math.Sqrt(sq / float64(len(prior)-1))

		if float64(counts[day]) > mean+sigma*std {
			spikes[day] = spikeStats{count: counts[day], mean: mean, std: std}
		}
	}

	var flags []domain.Flag
	for _, t := range txns {
		s, ok := spikes[t.Date]
		if !ok {
			continue
		}
		flags = append(flags, domain.Flag{
			Transaction: t,
			Rule:        domain.RuleVolumeSpike,
			Detail: fmt.Sprintf("Date %s: %d transactions (baseline mean=%.1f, std=%.1f, threshold=%.1f)",
				t.Date.Format("2006-01-02"), s.count, s.mean, s.std, s.mean+sigma*s.std),
			LeakageGBP:  0.0,
			DailyCount:  s.count,
			RollingMean: s.mean,
			RollingStd:  s.std,
		})
	}
	return flags
}

// daysBetween returns the whole-day difference b minus a. Dates carry day
// precision, so the division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
