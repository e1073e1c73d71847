package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of an uploaded file's
// processing run. Transitions only move forward:
// PENDING -> PROCESSING -> {COMPLETED, ERROR}.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusError      BatchStatus = "ERROR"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusCompleted, BatchStatusError:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this state.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusError
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch is one uploaded file's processing run.
//
// TotalRecords and ProcessedRecords are only authoritative once the batch
// reaches a terminal state; both count invoices (accepted documents plus
// rejected invoice groups), not source rows.
type Batch struct {
	ID               string
	SourceFilename   string
	TotalRecords     int
	ProcessedRecords int
	Status           BatchStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (b *Batch) Validate() error {
	if strings.TrimSpace(b.SourceFilename) == "" {
		return fmt.Errorf("%w: source filename is required", ErrValidation)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	return nil
}
