// Package ingest loads and validates the raw procurement transaction batch.
//
// The batch arrives as a CSV with a fixed required column set; extra columns
// are tolerated and ignored beyond the optional trio (po_number, region,
// approved_by). Validation is all-or-nothing: any missing column or
// uncoercible value fails the whole batch, so no partially-typed data ever
// reaches a detection rule.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/logger"
)

const dateLayout = "2006-01-02"

// requiredColumns, in the order missing ones are reported.
var requiredColumns = []string{
	"transaction_id",
	"date",
	"supplier_id",
	"supplier_name",
	"category",
	"baseline_rate",
	"invoice_amount",
	"expected_delivery_date",
	"actual_delivery_date",
}

// Load reads the transaction batch at path, validates the schema, and
// coerces date and numeric fields. It returns the typed batch in file order
// together with its inferred date span.
func Load(ctx context.Context, path string) ([]domain.Transaction, domain.DateRange, error) {
	log := logger.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.DateRange{}, &NotFoundError{Path: path}
		}
		return nil, domain.DateRange{}, fmt.Errorf("open transactions %s: %w", path, err)
	}
	defer f.Close()

	txns, span, err := Read(f)
	if err != nil {
		return nil, domain.DateRange{}, err
	}

	log.Info().
		Int("transactions", len(txns)).
		Str("path", path).
		Str("from", span.Start.Format(dateLayout)).
		Str("to", span.End.Format(dateLayout)).
		Msg("loaded transaction batch")
	return txns, span, nil
}

// Read parses a transaction batch from r. Split out from Load so tests and
// the API can feed batches without touching the filesystem.
func Read(r io.Reader) ([]domain.Transaction, domain.DateRange, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.DateRange{}, &SchemaError{Missing: append([]string(nil), requiredColumns...)}
		}
		return nil, domain.DateRange{}, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.DateRange{}, &SchemaError{Missing: missing}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var txns []domain.Transaction
	var span domain.DateRange
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.DateRange{}, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++

		txn := domain.Transaction{
			TransactionID: field(rec, "transaction_id"),
			SupplierID:    field(rec, "supplier_id"),
			SupplierName:  field(rec, "supplier_name"),
			Category:      field(rec, "category"),
			Region:        field(rec, "region"),
			ApprovedBy:    field(rec, "approved_by"),
			PONumber:      field(rec, "po_number"),
		}

		if txn.Date, err = parseDate(row, "date", field(rec, "date")); err != nil {
			return nil, domain.DateRange{}, err
		}
		if txn.ExpectedDelivery, err = parseDate(row, "expected_delivery_date", field(rec, "expected_delivery_date")); err != nil {
			return nil, domain.DateRange{}, err
		}
		if txn.ActualDelivery, err = parseDate(row, "actual_delivery_date", field(rec, "actual_delivery_date")); err != nil {
			return nil, domain.DateRange{}, err
		}
		if txn.BaselineRate, err = parseAmount(row, "baseline_rate", field(rec, "baseline_rate")); err != nil {
			return nil, domain.DateRange{}, err
		}
		if txn.InvoiceAmount, err = parseAmount(row, "invoice_amount", field(rec, "invoice_amount")); err != nil {
			return nil, domain.DateRange{}, err
		}

		if len(txns) == 0 {
			span = domain.DateRange{Start: txn.Date, End: txn.Date}
		} else {
			if txn.Date.Before(span.Start) {
				span.Start = txn.Date
			}
			if txn.Date.After(span.End) {
				span.End = txn.Date
			}
		}
		txns = append(txns, txn)
	}

	return txns, span, nil
}

func parseDate(row int, name, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &DataTypeError{Row: row, Field: name, Value: value}
	}
	return t, nil
}

func parseAmount(row int, name, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &DataTypeError{Row: row, Field: name, Value: value}
	}
	return v, nil
}
