package domain

// Rule identifies one of the four detection rules.
type Rule string

const (
	RuleDuplicate     Rule = "duplicate"
	RulePriceVariance Rule = "price_variance"
	RuleSLABreach     Rule = "sla_breach"
	RuleVolumeSpike   Rule = "volume_spike"
)

// AllRules lists every rule in canonical reporting order.
var AllRules = []Rule{RuleDuplicate, RulePriceVariance, RuleSLABreach, RuleVolumeSpike}

// Flag is a single finding raised by one rule against one transaction.
// It carries a copy of the transaction so downstream consumers never reach
// back into the batch. A transaction holds at most one flag per rule but may
// be flagged by several rules at once; overlapping findings raise confidence.
type Flag struct {
	Transaction Transaction
	Rule        Rule
	Detail      string
	LeakageGBP  float64 // estimated financial impact, >= 0

	// Rule-specific context. Zero for rules that do not set them.
	BreachDays  int     // sla_breach: days late beyond grace
	DailyCount  int     // volume_spike: transactions on the spike day
	RollingMean float64 // volume_spike: trailing baseline mean
	RollingStd  float64 // volume_spike: trailing baseline std deviation
}

// Severity is the triage tier assigned by the scorer.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// SeverityRank maps severity labels to an integer used purely for sorting;
// Critical sorts first.
var SeverityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// ScoredFlag is a Flag annotated with the composite score and severity tier.
type ScoredFlag struct {
	Flag

	BaseScore      float64 // rule-dependent contribution, 0-70
	FinancialScore float64 // leakage-magnitude contribution, 0-30
	CompositeScore float64 // base + financial, capped at 100
	Severity       Severity
	SeverityRank   int // 4=Critical .. 1=Low
	ActionRequired string
}

// Record flattens a scored flag into the export row shared by the report
// writer, the API, and the BigQuery/Notion exporters.
func (f ScoredFlag) Record() FlagRecord {
	return FlagRecord{
		TransactionID:  f.Transaction.TransactionID,
		Date:           f.Transaction.Date.Format("2006-01-02"),
		SupplierName:   f.Transaction.SupplierName,
		Category:       f.Transaction.Category,
		Region:         f.Transaction.Region,
		InvoiceAmount:  f.Transaction.InvoiceAmount,
		BaselineRate:   f.Transaction.BaselineRate,
		LeakageGBP:     f.LeakageGBP,
		RuleTriggered:  string(f.Rule),
		RuleDetail:     f.Detail,
		Severity:       string(f.Severity),
		SeverityRank:   f.SeverityRank,
		CompositeScore: f.CompositeScore,
		ActionRequired: f.ActionRequired,
		ApprovedBy:     f.Transaction.ApprovedBy,
	}
}

// FlagRecord is the flat output schema for a scored flag.
type FlagRecord struct {
	TransactionID  string  `json:"transaction_id"`
	Date           string  `json:"date"`
	SupplierName   string  `json:"supplier_name"`
	Category       string  `json:"category"`
	Region         string  `json:"region"`
	InvoiceAmount  float64 `json:"invoice_amount"`
	BaselineRate   float64 `json:"baseline_rate"`
	LeakageGBP     float64 `json:"leakage_amount_gbp"`
	RuleTriggered  string  `json:"rule_triggered"`
	RuleDetail     string  `json:"rule_detail"`
	Severity       string  `json:"severity"`
	SeverityRank   int     `json:"severity_rank"`
	CompositeScore float64 `json:"composite_score"`
	ActionRequired string  `json:"action_required"`
	ApprovedBy     string  `json:"approved_by"`
}
