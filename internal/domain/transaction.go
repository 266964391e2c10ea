package domain

import (
	"time"
)

// Transaction represents one procurement event from the raw batch.
// This is a domain struct, not an export row; the ingest package builds it
// from the validated CSV and nothing downstream ever mutates it.
type Transaction struct {
	TransactionID string    // unique within a batch (ingestion invariant)
	Date          time.Time // transaction date, day precision
	SupplierID    string
	SupplierName  string
	Category      string
	Region        string
	ApprovedBy    string
	PONumber      string
	BaselineRate  float64 // reference unit price, GBP
	InvoiceAmount float64 // amount charged, GBP

	ExpectedDelivery time.Time
	ActualDelivery   time.Time
}

// DateRange is the inferred min/max transaction date of a batch.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
