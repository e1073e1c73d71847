package ingest

import "strings"

const (
	reasonInvalidEmail     = "invalid email"
	reasonNonPositivePrice = "price must be > 0"
	reasonNonPositiveQty   = "quantity must be > 0"

	// ReasonInvoiceAtomicity annotates a row that passed validation on its
	// own but belongs to an invoice another line invalidated. Invoices are
	// accounting units and are rejected all-or-nothing.
	ReasonInvoiceAtomicity = "invoice rejected due to another line item's error"
)

// ValidateRow checks one row against the fixed rule order: email, unit
// price, quantity. All failing reasons are reported, joined with "; ".
// Missing or unparseable values fail their rule; nothing here ever faults.
func ValidateRow(r Row) (valid bool, reason string) {
	var reasons []string

	if !strings.Contains(r.CustomerEmail, "@") {
		reasons = append(reasons, reasonInvalidEmail)
	}
	if r.UnitPrice == nil || *r.UnitPrice <= 0 {
		reasons = append(reasons, reasonNonPositivePrice)
	}
	if r.Quantity == nil || *r.Quantity <= 0 {
		reasons = append(reasons, reasonNonPositiveQty)
	}

	return len(reasons) == 0, strings.Join(reasons, "; ")
}

// invoiceValidity accumulates the atomicity aggregate: an invoice is valid
// only while every one of its rows is.
type invoiceValidity map[string]bool

func (v invoiceValidity) observe(invoiceID string, rowValid bool) {
	current, seen := v[invoiceID]
	if !seen {
		current = true
	}
	v[invoiceID] = current && rowValid
}

func (v invoiceValidity) valid(invoiceID string) bool {
	valid, seen := v[invoiceID]
	return seen && valid
}
