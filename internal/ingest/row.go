// Package ingest loads a delimited-text or spreadsheet file of draft
// invoice lines, validates every row, applies invoice-level atomicity and
// splits the input into accepted rows and traceable rejections.
//
// Files are streamed in two passes: the first computes per-invoice
// validity, the second routes each row into its partition. Only the final
// accepted/rejected partitions are held in memory.
package ingest

// Canonical column names after normalization. Headers are matched
// case-insensitively; any column outside this set passes through to the
// rejected-row diagnostics untouched.
const (
	colInvoiceID     = "id_factura"
	colCustomerName  = "cliente_nombre"
	colCustomerEmail = "cliente_email"
	colProduct       = "producto"
	colUnitPrice     = "precio_unitario"
	colQuantity      = "cantidad"
	colTaxRate       = "iva_porcentaje"
)

// Row is one parsed source line. Numeric fields are nil when the source
// value was missing or not parseable; that is data-invalid, not a fault.
type Row struct {
	// Position is the 1-based line number in the source file, counting
	// the header as line 1.
	Position      int
	InvoiceID     string
	CustomerName  string
	CustomerEmail string
	Product       string
	UnitPrice     *float64
	Quantity      *int64
	TaxRate       *float64
	// Extras holds columns outside the canonical set, by original
	// (lower-cased) header name.
	Extras map[string]string
}

// RejectedRow carries everything needed to explain one rejected line back
// to the user: where it was, which invoice it belonged to, and why it was
// refused.
type RejectedRow struct {
	Position  int
	InvoiceID string
	Reason    string
	// Raw holds the original field values by column name, for diagnostic
	// display. Pipeline-computed fields are not included.
	Raw map[string]string
}

// Result is the materialized output of one ingestion run.
type Result struct {
	Accepted []Row
	Rejected []RejectedRow
}
