package ingest

import (
	"fmt"
	"strings"
)

// NotFoundError reports a missing source file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transaction data not found at %s (run the generator first)", e.Path)
}

// SchemaError reports every required column absent from the batch header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// DataTypeError reports the first value that could not be coerced to its
// declared type.
type DataTypeError struct {
	Row   int // 1-based data row, excluding the header
	Field string
	Value string
}

func (e *DataTypeError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %s value %q", e.Row, e.Field, e.Value)
}
