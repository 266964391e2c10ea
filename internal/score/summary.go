package score

import (
	"sort"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

const topSupplierLimit = 5

// BuildExecutiveSummary aggregates the scored flag set into headline figures
// and breakdowns for reporting and alerting. It is pure grouping and
// sorting; inputs are already validated upstream.
//
// Group orderings are deterministic: leakage descending, ties broken by
// first appearance in the scored set.
func BuildExecutiveSummary(scored []domain.ScoredFlag, raw domain.DetectionSummary) domain.ExecutiveSummary {
	severityCounts := map[domain.Severity]int{
		domain.SeverityCritical: 0,
		domain.SeverityHigh:     0,
		domain.SeverityMedium:   0,
		domain.SeverityLow:      0,
	}

	var totalLeakage float64
	distinctTxns := make(map[string]bool)

	categoryTotals := make(map[string]float64)
	var categoryOrder []string
	supplierTotals := make(map[string]float64)
	var supplierOrder []string
	byRule := make(map[domain.Rule]domain.RuleBreakdown)

	for _, f := range scored {
		severityCounts[f.Severity]++
		totalLeakage += f.LeakageGBP
		distinctTxns[f.Transaction.TransactionID] = true

		if _, seen := categoryTotals[f.Transaction.Category]; !seen {
			categoryOrder = append(categoryOrder, f.Transaction.Category)
		}
		categoryTotals[f.Transaction.Category] += f.LeakageGBP

		if _, seen := supplierTotals[f.Transaction.SupplierName]; !seen {
			supplierOrder = append(supplierOrder, f.Transaction.SupplierName)
		}
		supplierTotals[f.Transaction.SupplierName] += f.LeakageGBP

		b := byRule[f.Rule]
		b.Count++
		b.LeakageGBP += f.LeakageGBP
		byRule[f.Rule] = b
	}

	for rule, b := range byRule {
		b.LeakageGBP = round2(b.LeakageGBP)
		byRule[rule] = b
	}

	byCategory := make([]domain.CategoryLeakage, len(categoryOrder))
	for i, c := range categoryOrder {
		byCategory[i] = domain.CategoryLeakage{Category: c, LeakageGBP: round2(categoryTotals[c])}
	}
	sort.SliceStable(byCategory, func(i, j int) bool {
		return byCategory[i].LeakageGBP > byCategory[j].LeakageGBP
	})

	topSuppliers := make([]domain.SupplierLeakage, len(supplierOrder))
	for i, s := range supplierOrder {
		topSuppliers[i] = domain.SupplierLeakage{SupplierName: s, LeakageGBP: round2(supplierTotals[s])}
	}
	sort.SliceStable(topSuppliers, func(i, j int) bool {
		return topSuppliers[i].LeakageGBP > topSuppliers[j].LeakageGBP
	})
	if len(topSuppliers) > topSupplierLimit {
		topSuppliers = topSuppliers[:topSupplierLimit]
	}

	return domain.ExecutiveSummary{
		HeadlineGBP:               round2(totalLeakage),
		HeadlineTransactions:      len(distinctTxns),
		TotalFlags:                len(scored),
		TotalTransactionsAnalysed: raw.TotalTransactions,
		SeverityBreakdown:         severityCounts,
		ByCategory:                byCategory,
		ByRule:                    byRule,
		TopSuppliers:              topSuppliers,
		DateRange:                 raw.DateRange,
		Currency:                  "GBP",
	}
}
