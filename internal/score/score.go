// Package score turns raw detection flags into a ranked, actionable list.
//
// Every flag gets a composite score: a base contribution keyed by the rule
// that fired plus a financial contribution scaled from the leakage estimate.
// The composite maps to a severity tier with a fixed advisory action, and the
// result is sorted most-urgent-first. The ordering is a contract consumed by
// reporting collaborators: top of list means act now.
package score

import (
	"math"
	"sort"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

// Params carries the scoring configuration for one run.
type Params struct {
	RuleBaseScores       map[string]float64
	UnknownRuleBaseScore float64

	// GBP bands for the financial impact score.
	FinancialLow    float64
	FinancialMedium float64
	FinancialHigh   float64

	// Composite score cutoffs, inclusive on the lower edge of each tier.
	CriticalThreshold float64
	HighThreshold     float64
	MediumThreshold   float64
}

// DefaultParams returns the standard scoring configuration.
func DefaultParams() Params {
	return Params{
		RuleBaseScores: map[string]float64{
			"duplicate":      50,
			"price_variance": 45,
			"sla_breach":     40,
			"volume_spike":   35,
		},
		UnknownRuleBaseScore: 30,
		FinancialLow:         500,
		FinancialMedium:      2000,
		FinancialHigh:        10000,
		CriticalThreshold:    80,
		HighThreshold:        60,
		MediumThreshold:      35,
	}
}

// actions is the fixed advisory text per severity tier.
var actions = map[domain.Severity]string{
	domain.SeverityCritical: "IMMEDIATE: Escalate to Finance Director. Freeze supplier payments pending review.",
	domain.SeverityHigh:     "TODAY: Assign to senior analyst for same-day investigation.",
	domain.SeverityMedium:   "THIS WEEK: Add to weekly ops review. Request supplier clarification.",
	domain.SeverityLow:      "MONITOR: Log for trend analysis. Review at end of month.",
}

// ActionFor returns the advisory text for a severity tier.
func ActionFor(s domain.Severity) string {
	return actions[s]
}

// FinancialImpactScore maps a leakage amount to a 0-30 score, scaling
// linearly within each band so amounts approaching the next boundary earn
// proportionally more. Each band's result is rounded to 2 decimals.
func FinancialImpactScore(amount float64, p Params) float64 {
	switch {
	case amount <= 0:
		return 0
	case amount < p.FinancialLow:
		return round2(5 + (amount/p.FinancialLow)*5)
	case amount < p.FinancialMedium:
		return round2(10 + ((amount-p.FinancialLow)/(p.FinancialMedium-p.FinancialLow))*10)
	case amount < p.FinancialHigh:
		return round2(20 + ((amount-p.FinancialMedium)/(p.FinancialHigh-p.FinancialMedium))*8)
	default:
		return 30
	}
}

// ClassifySeverity maps a composite score to its tier by descending
// threshold comparison; boundaries are inclusive.
func ClassifySeverity(score float64, p Params) domain.Severity {
	switch {
	case score >= p.CriticalThreshold:
		return domain.SeverityCritical
	case score >= p.HighThreshold:
		return domain.SeverityHigh
	case score >= p.MediumThreshold:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// ScoreFlags scores and classifies every flag, then sorts by severity rank
// descending and leakage descending. The sort is stable, so flags tied on
// both keys keep their aggregation order.
func ScoreFlags(flags []domain.Flag, p Params) []domain.ScoredFlag {
	scored := make([]domain.ScoredFlag, 0, len(flags))
	for _, f := range flags {
		base, ok := p.RuleBaseScores[string(f.Rule)]
		if !ok {
			base = p.UnknownRuleBaseScore
		}
		financial := FinancialImpactScore(f.LeakageGBP, p)
		composite := math.Min(base+financial, 100)
		severity := ClassifySeverity(composite, p)

		scored = append(scored, domain.ScoredFlag{
			Flag:           f,
			BaseScore:      base,
			FinancialScore: financial,
			CompositeScore: composite,
			Severity:       severity,
			SeverityRank:   domain.SeverityRank[severity],
			ActionRequired: actions[severity],
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].SeverityRank != scored[j].SeverityRank {
			return scored[i].SeverityRank > scored[j].SeverityRank
		}
		return scored[i].LeakageGBP > scored[j].LeakageGBP
	})
	return scored
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
