package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/facturio/invoice-engine/internal/domain"
)

func testDocument() domain.InvoiceDocument {
	return domain.InvoiceDocument{
		NumberingRangeID:  "F001",
		ReferenceCode:     "F001",
		PaymentForm:       domain.PaymentFormCash,
		PaymentMethodCode: domain.PaymentMethodCode,
		GrossTotal:        250,
		TaxTotal:          47.5,
		Customer: domain.DocumentCustomer{
			Names: "Ana",
			Email: "ana@example.com",
		},
		Items: []domain.DocumentItem{
			{CodeReference: "Teclado", Name: "Teclado", Quantity: 2, Price: 100, TaxRate: 19},
		},
	}
}

func TestAPIClientSendSuccess(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/bills/validate" {
			t.Errorf("path = %s, want /v1/bills/validate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Bill validated successfully"}`))
	}))
	defer server.Close()

	client, err := NewAPIClient(server.URL, "token-1", 5*time.Second)
	if err != nil {
		t.Fatalf("NewAPIClient() error = %v", err)
	}

	outcome := client.Send(context.Background(), testDocument())
	if !outcome.Success() {
		t.Fatalf("outcome should be success, got %+v", outcome)
	}
	if outcome.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", outcome.StatusCode)
	}
	if outcome.Reference != "F001" {
		t.Fatalf("reference = %q, want F001", outcome.Reference)
	}
	if gotPayload["reference_code"] != "F001" {
		t.Fatalf("payload reference_code = %v, want F001", gotPayload["reference_code"])
	}
	if gotPayload["total_bruto"] != float64(250) {
		t.Fatalf("payload total_bruto = %v, want 250", gotPayload["total_bruto"])
	}
}

func TestAPIClientSendRemoteRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid invoice"}`))
	}))
	defer server.Close()

	client, err := NewAPIClient(server.URL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewAPIClient() error = %v", err)
	}

	outcome := client.Send(context.Background(), testDocument())
	if outcome.Success() {
		t.Fatal("outcome should not be success for 422")
	}
	if outcome.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", outcome.StatusCode)
	}
	if outcome.Body != `{"message":"invalid invoice"}` {
		t.Fatalf("body = %q, want remote body verbatim", outcome.Body)
	}
	if outcome.FailureReason() != "remote service returned status 422" {
		t.Fatalf("failure reason = %q", outcome.FailureReason())
	}
}

func TestAPIClientSendTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client, err := NewAPIClient(server.URL, "", 2*time.Second)
	if err != nil {
		t.Fatalf("NewAPIClient() error = %v", err)
	}

	outcome := client.Send(context.Background(), testDocument())
	if outcome.Success() {
		t.Fatal("outcome should not be success on transport failure")
	}
	if outcome.StatusCode != 0 {
		t.Fatalf("status = %d, want 0 for transport failure", outcome.StatusCode)
	}
	if outcome.Err == "" {
		t.Fatal("transport failure should carry the error text")
	}
}

func TestAPIClientSendTimeoutResolvesToOutcome(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	rc := resty.New()
	rc.SetTimeout(50 * time.Millisecond)
	client, err := NewAPIClientWithClient(server.URL, rc)
	if err != nil {
		t.Fatalf("NewAPIClientWithClient() error = %v", err)
	}

	outcome := client.Send(context.Background(), testDocument())
	if outcome.StatusCode != 0 || outcome.Err == "" {
		t.Fatalf("timeout should resolve to status 0 with error text, got %+v", outcome)
	}
}

func TestNewAPIClientRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewAPIClient("", "", 0); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewAPIClient("not a url", "", 0); err == nil {
		t.Fatal("expected error for malformed url")
	}
	if _, err := NewAPIClientWithClient("http://localhost:9", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestSimulatedClientAcceptsEverything(t *testing.T) {
	t.Parallel()

	client := NewSimulatedClient()
	client.latency = 0

	outcome := client.Send(context.Background(), testDocument())
	if !outcome.Success() {
		t.Fatalf("simulated outcome should be success, got %+v", outcome)
	}
	if outcome.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", outcome.StatusCode)
	}
}
