package domain

// RuleBreakdown aggregates flag count and leakage for one rule.
type RuleBreakdown struct {
	Count      int     `json:"count"`
	LeakageGBP float64 `json:"leakage_gbp"`
}

// DetectionSummary is the raw aggregate computed when the four rule outputs
// are unioned, before scoring.
type DetectionSummary struct {
	TotalTransactions int                    `json:"total_transactions"`
	TotalFlags        int                    `json:"total_flags"`
	TotalLeakageGBP   float64                `json:"total_leakage_gbp"`
	ByRule            map[Rule]RuleBreakdown `json:"by_rule"`
	DateRange         DateRange              `json:"date_range"`
}

// CategoryLeakage is one entry of the leakage-by-category breakdown,
// ordered by leakage descending.
type CategoryLeakage struct {
	Category   string  `json:"category"`
	LeakageGBP float64 `json:"leakage_gbp"`
}

// SupplierLeakage is one entry of the top-suppliers breakdown, ordered by
// leakage descending with ties broken by first appearance.
type SupplierLeakage struct {
	SupplierName string  `json:"supplier_name"`
	LeakageGBP   float64 `json:"leakage_gbp"`
}

// ExecutiveSummary holds the headline figures and breakdowns consumed by
// reporting and alerting collaborators.
type ExecutiveSummary struct {
	HeadlineGBP               float64                `json:"headline_gbp"`
	HeadlineTransactions      int                    `json:"headline_transactions"`
	TotalFlags                int                    `json:"total_flags"`
	TotalTransactionsAnalysed int                    `json:"total_transactions_analysed"`
	SeverityBreakdown         map[Severity]int       `json:"severity_breakdown"`
	ByCategory                []CategoryLeakage      `json:"by_category"`
	ByRule                    map[Rule]RuleBreakdown `json:"by_rule"`
	TopSuppliers              []SupplierLeakage      `json:"top_suppliers"`
	DateRange                 DateRange              `json:"date_range"`
	Currency                  string                 `json:"currency"`
}
