package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validBatch = `transaction_id,date,supplier_id,supplier_name,category,baseline_rate,invoice_amount,expected_delivery_date,actual_delivery_date,po_number,region,approved_by
TXN-0001,2024-01-15,SUP001,Acme Logistics,Freight,1000.00,1000.00,2024-01-18,2024-01-18,PO-100,North,j.smith
TXN-0002,2024-01-16,SUP001,Acme Logistics,Freight,1000.00,1000.40,2024-01-19,2024-01-23,PO-101,North,j.smith
TXN-0003,2024-01-10,SUP002,Borealis Supplies,Packaging,250.00,320.00,2024-01-12,2024-01-12,PO-102,South,a.jones
`

func TestRead_ValidBatch(t *testing.T) {
	txns, span, err := Read(strings.NewReader(validBatch))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(txns))
	}

	first := txns[0]
	if first.TransactionID != "TXN-0001" {
		t.Errorf("Expected TXN-0001 first (file order), got %s", first.TransactionID)
	}
	if first.SupplierName != "Acme Logistics" || first.Category != "Freight" {
		t.Errorf("Unexpected supplier/category: %s/%s", first.SupplierName, first.Category)
	}
	if first.InvoiceAmount != 1000.00 || first.BaselineRate != 1000.00 {
		t.Errorf("Unexpected amounts: %g/%g", first.InvoiceAmount, first.BaselineRate)
	}
	if first.Region != "North" || first.ApprovedBy != "j.smith" || first.PONumber != "PO-100" {
		t.Errorf("Optional columns not carried: %+v", first)
	}

	if span.Start.Format("2006-01-02") != "2024-01-10" {
		t.Errorf("Expected span start 2024-01-10, got %s", span.Start.Format("2006-01-02"))
	}
	if span.End.Format("2006-01-02") != "2024-01-16" {
		t.Errorf("Expected span end 2024-01-16, got %s", span.End.Format("2006-01-02"))
	}
}

func TestRead_ExtraColumnsTolerated(t *testing.T) {
	batch := `transaction_id,date,supplier_id,supplier_name,category,baseline_rate,invoice_amount,expected_delivery_date,actual_delivery_date,unknown_col
TXN-0001,2024-01-15,SUP001,Acme,Freight,100.00,100.00,2024-01-18,2024-01-18,whatever
`
	txns, _, err := Read(strings.NewReader(batch))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}
}

func TestRead_MissingColumns(t *testing.T) {
	batch := `transaction_id,date,supplier_id,category,invoice_amount
TXN-0001,2024-01-15,SUP001,Freight,100.00
`
	_, _, err := Read(strings.NewReader(batch))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected SchemaError, got %v", err)
	}

	want := []string{"supplier_name", "baseline_rate", "expected_delivery_date", "actual_delivery_date"}
	if len(schemaErr.Missing) != len(want) {
		t.Fatalf("Expected %d missing columns, got %v", len(want), schemaErr.Missing)
	}
	for i, name := range want {
		if schemaErr.Missing[i] != name {
			t.Errorf("Missing[%d] = %s, want %s", i, schemaErr.Missing[i], name)
		}
	}
	for _, name := range want {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("Error message should name %s: %v", name, err)
		}
	}
}

func TestRead_BadDate(t *testing.T) {
	batch := `transaction_id,date,supplier_id,supplier_name,category,baseline_rate,invoice_amount,expected_delivery_date,actual_delivery_date
TXN-0001,2024-01-15,SUP001,Acme,Freight,100.00,100.00,2024-01-18,2024-01-18
TXN-0002,not-a-date,SUP001,Acme,Freight,100.00,100.00,2024-01-18,2024-01-18
`
	_, _, err := Read(strings.NewReader(batch))
	var typeErr *DataTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("Expected DataTypeError, got %v", err)
	}
	if typeErr.Row != 2 || typeErr.Field != "date" || typeErr.Value != "not-a-date" {
		t.Errorf("Unexpected error context: %+v", typeErr)
	}
}

func TestRead_BadAmount(t *testing.T) {
	batch := `transaction_id,date,supplier_id,supplier_name,category,baseline_rate,invoice_amount,expected_delivery_date,actual_delivery_date
TXN-0001,2024-01-15,SUP001,Acme,Freight,100.00,abc,2024-01-18,2024-01-18
`
	_, _, err := Read(strings.NewReader(batch))
	var typeErr *DataTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("Expected DataTypeError, got %v", err)
	}
	if typeErr.Field != "invoice_amount" {
		t.Errorf("Expected invoice_amount field, got %s", typeErr.Field)
	}
}

func TestRead_EmptyInput(t *testing.T) {
	_, _, err := Read(strings.NewReader(""))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected SchemaError for empty input, got %v", err)
	}
	if len(schemaErr.Missing) != len(requiredColumns) {
		t.Errorf("Expected all %d columns reported missing, got %d", len(requiredColumns), len(schemaErr.Missing))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(context.Background(), "/nonexistent/transactions.csv")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if nfErr.Path != "/nonexistent/transactions.csv" {
		t.Errorf("Unexpected path in error: %s", nfErr.Path)
	}
}

func TestLoad_FromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transactions.csv")
	if err := os.WriteFile(path, []byte(validBatch), 0o644); err != nil {
		t.Fatal(err)
	}

	txns, _, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(txns) != 3 {
		t.Errorf("Expected 3 transactions, got %d", len(txns))
	}
}
