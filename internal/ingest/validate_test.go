package ingest

import "testing"

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int64) *int64       { return &v }

func TestValidateRowAllRulesPass(t *testing.T) {
	t.Parallel()

	valid, reason := ValidateRow(Row{
		CustomerEmail: "ana@example.com",
		UnitPrice:     floatPtr(100),
		Quantity:      intPtr(2),
	})
	if !valid {
		t.Fatalf("row should be valid, got reason %q", reason)
	}
	if reason != "" {
		t.Fatalf("reason = %q, want empty", reason)
	}
}

func TestValidateRowReasonsConcatenateInRuleOrder(t *testing.T) {
	t.Parallel()

	valid, reason := ValidateRow(Row{
		CustomerEmail: "not-an-email",
		UnitPrice:     floatPtr(0),
		Quantity:      nil,
	})
	if valid {
		t.Fatal("row should be invalid")
	}

	want := "invalid email; price must be > 0; quantity must be > 0"
	if reason != want {
		t.Fatalf("reason = %q, want %q", reason, want)
	}
}

func TestValidateRowMissingValuesFailTheirRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  Row
		want string
	}{
		{
			name: "missing email",
			row:  Row{UnitPrice: floatPtr(10), Quantity: intPtr(1)},
			want: "invalid email",
		},
		{
			name: "unparseable price",
			row:  Row{CustomerEmail: "a@b.co", UnitPrice: nil, Quantity: intPtr(1)},
			want: "price must be > 0",
		},
		{
			name: "negative quantity",
			row:  Row{CustomerEmail: "a@b.co", UnitPrice: floatPtr(10), Quantity: intPtr(-3)},
			want: "quantity must be > 0",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			valid, reason := ValidateRow(tc.row)
			if valid {
				t.Fatal("row should be invalid")
			}
			if reason != tc.want {
				t.Fatalf("reason = %q, want %q", reason, tc.want)
			}
		})
	}
}

func TestInvoiceValidityAggregatesWithAND(t *testing.T) {
	t.Parallel()

	validity := make(invoiceValidity)
	validity.observe("F001", true)
	validity.observe("F001", false)
	validity.observe("F001", true)
	validity.observe("F002", true)

	if validity.valid("F001") {
		t.Fatal("F001 should be invalid: one of its rows failed")
	}
	if !validity.valid("F002") {
		t.Fatal("F002 should be valid")
	}
	if validity.valid("F999") {
		t.Fatal("unseen invoice should not report valid")
	}
}
