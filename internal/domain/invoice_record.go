package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecordStatus represents the final outcome of one invoice.
type RecordStatus string

const (
	// RecordStatusRejected marks an invoice rejected by validation before
	// any dispatch was attempted.
	RecordStatusRejected RecordStatus = "REJECTED"
	// RecordStatusSent marks an invoice accepted by the remote invoicing
	// service (HTTP 200/201).
	RecordStatusSent RecordStatus = "SENT"
	// RecordStatusRemoteError marks an invoice the remote service refused
	// or that failed in transit.
	RecordStatusRemoteError RecordStatus = "REMOTE_ERROR"
)

func (s RecordStatus) String() string { return string(s) }

func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusRejected, RecordStatusSent, RecordStatusRemoteError:
		return true
	}
	return false
}

func ParseRecordStatusFromString(s string) (RecordStatus, error) {
	st := RecordStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid record status %q", ErrValidation, s)
	}
	return st, nil
}

// InvoiceRecord is one persisted invoice outcome: either an invoice
// rejected before dispatch or the result of a dispatch call. Records are
// write-once; nothing in the pipeline mutates them after creation.
//
// BatchID is nil for invoices submitted individually, outside a batch.
type InvoiceRecord struct {
	ID              string
	BatchID         *string
	ReferenceCode   string
	CustomerEmail   string
	Total           float64
	Status          RecordStatus
	RejectionReason *string
	// APIResponse holds the remote service's response body verbatim for
	// audit. Nil for invoices rejected before dispatch.
	APIResponse *string
	CreatedAt   time.Time
}

func (r *InvoiceRecord) Validate() error {
	if strings.TrimSpace(r.ReferenceCode) == "" {
		return fmt.Errorf("%w: reference code is required", ErrValidation)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid record status %q", ErrValidation, r.Status)
	}
	return nil
}
