// Package generate produces a synthetic procurement batch with controlled
// anomaly injection, used to exercise the detection pipeline end to end.
//
// The output conforms to the ingestion schema, with two extra columns
// (is_anomaly, anomaly_type) recording ground truth for validation; the
// ingester tolerates and ignores them. Generation is deterministic for a
// fixed seed.
package generate

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dvloznov/leakage-detector/internal/logger"
)

// Supplier is one vendor in the synthetic roster.
type Supplier struct {
	ID           string
	Name         string
	Category     string
	BaselineRate float64
}

// Record is one generated transaction row, including the ground-truth
// anomaly annotation.
type Record struct {
	TransactionID    string
	Date             time.Time
	SupplierID       string
	SupplierName     string
	Category         string
	BaselineRate     float64
	InvoiceAmount    float64
	ExpectedDelivery time.Time
	ActualDelivery   time.Time
	PONumber         string
	Region           string
	ApprovedBy       string
	IsAnomaly        bool
	AnomalyType      string
}

// Options tunes dataset generation.
type Options struct {
	Seed            int64
	Days            int
	Start           time.Time // zero value means today minus Days
	TxnsPerDayMean  float64
	TxnsPerDayStd   float64
	DuplicateRate   float64
	OverchargeRate  float64
	SLABreachRate   float64
	VolumeSpikeDays int
	Suppliers       []Supplier
	SLADays         map[string]int
}

// DefaultOptions returns the standard 90-day generation profile.
func DefaultOptions() Options {
	return Options{
		Seed:            42,
		Days:            90,
		TxnsPerDayMean:  25,
		TxnsPerDayStd:   5,
		DuplicateRate:   0.025,
		OverchargeRate:  0.03,
		SLABreachRate:   0.04,
		VolumeSpikeDays: 3,
		Suppliers:       defaultSuppliers(),
		SLADays: map[string]int{
			"Freight":         3,
			"IT Hardware":     7,
			"Packaging":       2,
			"Facilities":      5,
			"Office Supplies": 2,
			"Catering":        1,
		},
	}
}

func defaultSuppliers() []Supplier {
	return []Supplier{
		{ID: "SUP001", Name: "Albion Freight Ltd", Category: "Freight", BaselineRate: 1200},
		{ID: "SUP002", Name: "Northgate IT Solutions", Category: "IT Hardware", BaselineRate: 3400},
		{ID: "SUP003", Name: "Pennine Packaging Co", Category: "Packaging", BaselineRate: 280},
		{ID: "SUP004", Name: "Severn Facilities Group", Category: "Facilities", BaselineRate: 950},
		{ID: "SUP005", Name: "Caledonia Office Supply", Category: "Office Supplies", BaselineRate: 140},
		{ID: "SUP006", Name: "Harbourline Catering", Category: "Catering", BaselineRate: 420},
		{ID: "SUP007", Name: "Mersey Haulage", Category: "Freight", BaselineRate: 1650},
		{ID: "SUP008", Name: "Trent Valley Hardware", Category: "IT Hardware", BaselineRate: 2100},
	}
}

var (
	regions   = []string{"London", "Manchester", "Birmingham", "Leeds", "Bristol", "Edinburgh"}
	approvers = []string{"J.Harrison", "S.Patel", "M.Okonkwo", "L.Chen", "R.Fitzgerald"}
)

// Dataset builds the full synthetic batch: base transactions with weekday
// weighting and natural price noise, then duplicate, overcharge, SLA breach,
// and volume spike injection, sorted by date then transaction ID.
func Dataset(opts Options) []Record {
	rng := rand.New(rand.NewSource(opts.Seed))

	start := opts.Start
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -opts.Days)
	}

	recs := baseTransactions(opts, rng, start)
	recs = injectDuplicates(recs, opts.DuplicateRate, rng)
	injectOvercharges(recs, opts.OverchargeRate, rng)
	injectSLABreaches(recs, opts.SLABreachRate, rng)
	recs = injectVolumeSpikes(recs, opts, rng)

	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].TransactionID < recs[j].TransactionID
	})
	return recs
}

func baseTransactions(opts Options, rng *rand.Rand, start time.Time) []Record {
	var recs []Record
	txnIndex := 1
	poCounter := 10000

	for dayOffset := 0; dayOffset < opts.Days; dayOffset++ {
		date := start.AddDate(0, 0, dayOffset)

		// Fewer transactions on weekends.
		dayMean := opts.TxnsPerDayMean
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			dayMean = opts.TxnsPerDayMean * 0.3
			if dayMean < 5 {
				dayMean = 5
			}
		}

		n := int(rng.NormFloat64()*opts.TxnsPerDayStd + dayMean)
		if n < 1 {
			n = 1
		}

		for i := 0; i < n; i++ {
			s := opts.Suppliers[rng.Intn(len(opts.Suppliers))]
			slaDays := opts.SLADays[s.Category]
			if slaDays == 0 {
				slaDays = 3
			}

			// ±8% natural price variation, floored at £10.
			amount := round2(rng.NormFloat64()*s.BaselineRate*0.08 + s.BaselineRate)
			if amount < 10 {
				amount = 10
			}

			expected := date.AddDate(0, 0, slaDays)
			actual := expected.AddDate(0, 0, rng.Intn(3)-1)

			poCounter++
			recs = append(recs, Record{
				TransactionID:    fmt.Sprintf("TXN-%06d", txnIndex),
				Date:             date,
				SupplierID:       s.ID,
				SupplierName:     s.Name,
				Category:         s.Category,
				BaselineRate:     s.BaselineRate,
				InvoiceAmount:    amount,
				ExpectedDelivery: expected,
				ActualDelivery:   actual,
				PONumber:         fmt.Sprintf("PO-%d", poCounter),
				Region:           regions[rng.Intn(len(regions))],
				ApprovedBy:       approvers[rng.Intn(len(approvers))],
			})
			txnIndex++
		}
	}
	return recs
}

// injectDuplicates clones selected rows onto an adjacent day, simulating
// double-billing or AP processing errors.
func injectDuplicates(recs []Record, rate float64, rng *rand.Rand) []Record {
	n := int(float64(len(recs)) * rate)
	if n < 1 {
		n = 1
	}
	for _, idx := range pick(rng, len(recs), n) {
		dup := recs[idx]
		offset := 1
		if rng.Intn(2) == 0 {
			offset = -1
		}
		dup.Date = dup.Date.AddDate(0, 0, offset)
		dup.TransactionID = fmt.Sprintf("TXN-DUP-%06d", idx)
		dup.PONumber = fmt.Sprintf("PO-DUP-%d", idx)
		dup.IsAnomaly = true
		dup.AnomalyType = "duplicate"
		recs = append(recs, dup)
	}
	return recs
}

// injectOvercharges inflates invoices 20-45% above baseline, safely past the
// default 15% variance threshold.
func injectOvercharges(recs []Record, rate float64, rng *rand.Rand) {
	n := int(float64(len(recs)) * rate)
	if n < 1 {
		n = 1
	}
	for _, idx := range pick(rng, len(recs), n) {
		mult := 1.20 + rng.Float64()*0.25
		recs[idx].InvoiceAmount = round2(recs[idx].BaselineRate * mult)
		markAnomaly(&recs[idx], "price_variance")
	}
}

// injectSLABreaches pushes deliveries 3-15 days past the expected date.
func injectSLABreaches(recs []Record, rate float64, rng *rand.Rand) {
	n := int(float64(len(recs)) * rate)
	if n < 1 {
		n = 1
	}
	for _, idx := range pick(rng, len(recs), n) {
		extra := 3 + rng.Intn(13)
		recs[idx].ActualDelivery = recs[idx].ExpectedDelivery.AddDate(0, 0, extra)
		markAnomaly(&recs[idx], "sla_breach")
	}
}

// injectVolumeSpikes appends 3-5x the daily mean of extra transactions on a
// few chosen days, avoiding the first and last week so the rolling baseline
// has context on both sides.
func injectVolumeSpikes(recs []Record, opts Options, rng *rand.Rand) []Record {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, r := range recs {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) <= 14 {
		return recs
	}
	pool := dates[7 : len(dates)-7]

	nDays := opts.VolumeSpikeDays
	if nDays > len(pool) {
		nDays = len(pool)
	}

	spikeIndex := 900000
	for _, poolIdx := range pick(rng, len(pool), nDays) {
		spikeDate := pool[poolIdx]
		lo := int(opts.TxnsPerDayMean * 3)
		hi := int(opts.TxnsPerDayMean * 5)
		nExtra := lo + rng.Intn(hi-lo)

		for i := 0; i < nExtra; i++ {
			s := opts.Suppliers[rng.Intn(len(opts.Suppliers))]
			slaDays := opts.SLADays[s.Category]
			if slaDays == 0 {
				slaDays = 3
			}
			amount := round2(rng.NormFloat64()*s.BaselineRate*0.08 + s.BaselineRate)
			if amount < 10 {
				amount = 10
			}
			expected := spikeDate.AddDate(0, 0, slaDays)

			spikeIndex++
			recs = append(recs, Record{
				TransactionID:    fmt.Sprintf("TXN-SPIKE-%06d", spikeIndex),
				Date:             spikeDate,
				SupplierID:       s.ID,
				SupplierName:     s.Name,
				Category:         s.Category,
				BaselineRate:     s.BaselineRate,
				InvoiceAmount:    amount,
				ExpectedDelivery: expected,
				ActualDelivery:   expected.AddDate(0, 0, rng.Intn(2)),
				PONumber:         fmt.Sprintf("PO-SPIKE-%d", spikeIndex),
				Region:           regions[rng.Intn(len(regions))],
				ApprovedBy:       approvers[rng.Intn(len(approvers))],
				IsAnomaly:        true,
				AnomalyType:      "volume_spike",
			})
		}
	}
	return recs
}

func markAnomaly(r *Record, kind string) {
	r.IsAnomaly = true
	if r.AnomalyType == "" {
		r.AnomalyType = kind
	} else {
		r.AnomalyType += "|" + kind
	}
}

// pick returns n distinct indices in [0, total), in random order.
func pick(rng *rand.Rand, total, n int) []int {
	if n > total {
		n = total
	}
	return rng.Perm(total)[:n]
}

var csvHeader = []string{
	"transaction_id", "date", "supplier_id", "supplier_name", "category",
	"baseline_rate", "invoice_amount", "expected_delivery_date",
	"actual_delivery_date", "po_number", "region", "approved_by",
	"is_anomaly", "anomaly_type",
}

// WriteCSV writes the dataset in the ingestion schema.
func WriteCSV(w *csv.Writer, recs []Record) error {
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range recs {
		row := []string{
			r.TransactionID,
			r.Date.Format("2006-01-02"),
			r.SupplierID,
			r.SupplierName,
			r.Category,
			strconv.FormatFloat(r.BaselineRate, 'f', 2, 64),
			strconv.FormatFloat(r.InvoiceAmount, 'f', 2, 64),
			r.ExpectedDelivery.Format("2006-01-02"),
			r.ActualDelivery.Format("2006-01-02"),
			r.PONumber,
			r.Region,
			r.ApprovedBy,
			strconv.FormatBool(r.IsAnomaly),
			r.AnomalyType,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", r.TransactionID, err)
		}
	}
	w.Flush()
	return w.Error()
}

// ToFile generates the dataset and writes it to path, creating parent
// directories as needed.
func ToFile(ctx context.Context, path string, opts Options) error {
	log := logger.FromContext(ctx)

	recs := Dataset(opts)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCSV(csv.NewWriter(f), recs); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}

	anomalies := 0
	for _, r := range recs {
		if r.IsAnomaly {
			anomalies++
		}
	}
	log.Info().
		Str("path", path).
		Int("rows", len(recs)).
		Int("anomalies", anomalies).
		Int64("seed", opts.Seed).
		Msg("dataset written")
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
