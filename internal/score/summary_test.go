package score

import (
	"testing"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

func sampleRawSummary() domain.DetectionSummary {
	return domain.DetectionSummary{
		TotalTransactions: 1000,
		TotalFlags:        3,
		TotalLeakageGBP:   4100,
		DateRange:         domain.DateRange{Start: day("2024-01-01"), End: day("2024-03-31")},
	}
}

func TestBuildExecutiveSummary_Headline(t *testing.T) {
	scored := ScoreFlags(sampleFlags(), DefaultParams())
	s := BuildExecutiveSummary(scored, sampleRawSummary())

	if s.HeadlineGBP != 4100 {
		t.Errorf("Expected headline 4100.00, got %g", s.HeadlineGBP)
	}
	if s.HeadlineTransactions != 3 {
		t.Errorf("Expected 3 distinct transactions, got %d", s.HeadlineTransactions)
	}
	if s.TotalFlags != 3 {
		t.Errorf("Expected 3 flags, got %d", s.TotalFlags)
	}
	if s.TotalTransactionsAnalysed != 1000 {
		t.Errorf("Expected 1000 analysed, got %d", s.TotalTransactionsAnalysed)
	}
	if s.Currency != "GBP" {
		t.Errorf("Expected GBP currency, got %s", s.Currency)
	}
	if s.DateRange.Start.Format("2006-01-02") != "2024-01-01" || s.DateRange.End.Format("2006-01-02") != "2024-03-31" {
		t.Errorf("Date range not carried over: %+v", s.DateRange)
	}
}

func TestBuildExecutiveSummary_AllSeverityLabelsPresent(t *testing.T) {
	scored := ScoreFlags(sampleFlags(), DefaultParams())
	s := BuildExecutiveSummary(scored, sampleRawSummary())

	for _, sev := range []domain.Severity{
		domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow,
	} {
		if _, ok := s.SeverityBreakdown[sev]; !ok {
			t.Errorf("Severity breakdown missing %s (must be present even when zero)", sev)
		}
	}
	if s.SeverityBreakdown[domain.SeverityHigh] != 1 || s.SeverityBreakdown[domain.SeverityMedium] != 2 {
		t.Errorf("Unexpected severity counts: %v", s.SeverityBreakdown)
	}
	if s.SeverityBreakdown[domain.SeverityCritical] != 0 {
		t.Errorf("Expected zero Critical, got %d", s.SeverityBreakdown[domain.SeverityCritical])
	}
}

func TestBuildExecutiveSummary_CategoryOrdering(t *testing.T) {
	scored := ScoreFlags(sampleFlags(), DefaultParams())
	s := BuildExecutiveSummary(scored, sampleRawSummary())

	if len(s.ByCategory) != 3 {
		t.Fatalf("Expected 3 categories, got %d", len(s.ByCategory))
	}
	for i := 1; i < len(s.ByCategory); i++ {
		if s.ByCategory[i].LeakageGBP > s.ByCategory[i-1].LeakageGBP {
			t.Fatalf("Categories not sorted by leakage descending: %+v", s.ByCategory)
		}
	}
	if s.ByCategory[0].Category != "IT" || s.ByCategory[0].LeakageGBP != 3500 {
		t.Errorf("Expected IT (3500.00) first, got %+v", s.ByCategory[0])
	}
}

func TestBuildExecutiveSummary_ByRule(t *testing.T) {
	scored := ScoreFlags(sampleFlags(), DefaultParams())
	s := BuildExecutiveSummary(scored, sampleRawSummary())

	if got := s.ByRule[domain.RuleDuplicate]; got.Count != 1 || got.LeakageGBP != 3500 {
		t.Errorf("Unexpected duplicate breakdown: %+v", got)
	}
	if got := s.ByRule[domain.RulePriceVariance]; got.Count != 1 || got.LeakageGBP != 150 {
		t.Errorf("Unexpected price variance breakdown: %+v", got)
	}
	if got := s.ByRule[domain.RuleSLABreach]; got.Count != 1 || got.LeakageGBP != 450 {
		t.Errorf("Unexpected sla breakdown: %+v", got)
	}
}

func TestBuildExecutiveSummary_TopSuppliersLimitAndTies(t *testing.T) {
	var flags []domain.Flag
	// Seven suppliers; two pairs tied on leakage to exercise first-appearance
	// tie-breaking, and more than five total to exercise the limit.
	amounts := []float64{100, 700, 300, 300, 900, 50, 100}
	for i, amt := range amounts {
		flags = append(flags, domain.Flag{
			Transaction: domain.Transaction{
				TransactionID: string(rune('A' + i)),
				SupplierName:  "Supplier " + string(rune('A'+i)),
				Category:      "Logistics",
			},
			Rule:       domain.RuleSLABreach,
			LeakageGBP: amt,
		})
	}
	scored := ScoreFlags(flags, DefaultParams())
	s := BuildExecutiveSummary(scored, sampleRawSummary())

	if len(s.TopSuppliers) != 5 {
		t.Fatalf("Expected top-5 suppliers, got %d", len(s.TopSuppliers))
	}
	for i := 1; i < len(s.TopSuppliers); i++ {
		if s.TopSuppliers[i].LeakageGBP > s.TopSuppliers[i-1].LeakageGBP {
			t.Fatalf("Suppliers not sorted descending: %+v", s.TopSuppliers)
		}
	}
	// The tied 300s keep scored-set order: C before D.
	var names []string
	for _, sup := range s.TopSuppliers {
		names = append(names, sup.SupplierName)
	}
	idxC, idxD := -1, -1
	for i, n := range names {
		if n == "Supplier C" {
			idxC = i
		}
		if n == "Supplier D" {
			idxD = i
		}
	}
	if idxC == -1 || idxD == -1 || idxC > idxD {
		t.Errorf("Tie not broken by first appearance: %v", names)
	}
}

func TestBuildExecutiveSummary_EmptyScoredSet(t *testing.T) {
	raw := domain.DetectionSummary{TotalTransactions: 50}
	s := BuildExecutiveSummary(nil, raw)

	if s.HeadlineGBP != 0 || s.TotalFlags != 0 || s.HeadlineTransactions != 0 {
		t.Errorf("Expected zeroed headline for empty set: %+v", s)
	}
	if len(s.SeverityBreakdown) != 4 {
		t.Errorf("All four severity labels must be present, got %v", s.SeverityBreakdown)
	}
	if s.TotalTransactionsAnalysed != 50 {
		t.Errorf("Expected analysed count carried from raw summary, got %d", s.TotalTransactionsAnalysed)
	}
}
