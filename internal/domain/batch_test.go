package domain

import "testing"

func TestBatchStatusTransitionsAreForwardOnly(t *testing.T) {
	t.Parallel()

	if BatchStatusPending.IsTerminal() {
		t.Fatal("PENDING must not be terminal")
	}
	if BatchStatusProcessing.IsTerminal() {
		t.Fatal("PROCESSING must not be terminal")
	}
	if !BatchStatusCompleted.IsTerminal() {
		t.Fatal("COMPLETED must be terminal")
	}
	if !BatchStatusError.IsTerminal() {
		t.Fatal("ERROR must be terminal")
	}
}

func TestParseBatchStatusFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseBatchStatusFromString(" processing ")
	if err != nil {
		t.Fatalf("ParseBatchStatusFromString() error = %v", err)
	}
	if got != BatchStatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", got)
	}

	if _, err := ParseBatchStatusFromString("RUNNING"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestBatchValidate(t *testing.T) {
	t.Parallel()

	b := &Batch{SourceFilename: "facturas.csv", Status: BatchStatusPending}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	b = &Batch{SourceFilename: "  ", Status: BatchStatusPending}
	if err := b.Validate(); err == nil {
		t.Fatal("expected error for blank filename")
	}
}

func TestInvoiceRecordValidate(t *testing.T) {
	t.Parallel()

	r := &InvoiceRecord{ReferenceCode: "F001", Status: RecordStatusSent}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	r = &InvoiceRecord{ReferenceCode: "F001", Status: RecordStatus("OK")}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for unknown record status")
	}
}
