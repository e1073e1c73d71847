// Package dispatch sends canonical invoice documents to the external
// invoicing service and fans a whole batch out concurrently.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/facturio/invoice-engine/internal/domain"
)

const (
	defaultDispatchTimeout = 30 * time.Second
	validateBillPath       = "/v1/bills/validate"
)

// Outcome is the normalized result of one dispatch call. Remote failures
// of any kind (non-2xx, timeout, transport error) are represented here,
// never as Go errors; a transport failure carries StatusCode 0.
type Outcome struct {
	Reference  string
	StatusCode int
	Body       string
	Err        string
}

// Success reports whether the remote service accepted the invoice.
func (o Outcome) Success() bool {
	return o.StatusCode == http.StatusOK || o.StatusCode == http.StatusCreated
}

// FailureReason renders a short reason for persisting on REMOTE_ERROR
// records.
func (o Outcome) FailureReason() string {
	if o.Success() {
		return ""
	}
	if o.StatusCode == 0 {
		return fmt.Sprintf("remote service unreachable: %s", o.Err)
	}
	return fmt.Sprintf("remote service returned status %d", o.StatusCode)
}

// Client is the outbound invoicing port.
type Client interface {
	Send(ctx context.Context, doc domain.InvoiceDocument) Outcome
}

// APIClient submits invoices to the external invoicing authority. It is
// stateless and safe for concurrent use; every call carries its own
// timeout via the underlying HTTP client.
type APIClient struct {
	client  *resty.Client
	baseURL string
}

func NewAPIClient(baseURL, token string, timeout time.Duration) (*APIClient, error) {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	if strings.TrimSpace(token) != "" {
		client.SetAuthToken(token)
	}

	return NewAPIClientWithClient(baseURL, client)
}

func NewAPIClientWithClient(baseURL string, client *resty.Client) (*APIClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("invoicing service url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid invoicing service url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultDispatchTimeout)
	}
	client.SetRetryCount(0)

	return &APIClient{client: client, baseURL: trimmed}, nil
}

// Send submits one document. It never returns an error for remote
// failures; everything resolves into an Outcome.
func (c *APIClient) Send(ctx context.Context, doc domain.InvoiceDocument) Outcome {
	outcome := Outcome{Reference: doc.ReferenceCode}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(doc).
		Post(c.baseURL + validateBillPath)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	if response == nil {
		outcome.Err = "empty response from invoicing service"
		return outcome
	}

	outcome.StatusCode = response.StatusCode()
	outcome.Body = strings.TrimSpace(response.String())
	return outcome
}

// Probe checks reachability of the invoicing service for readiness
// reporting. Failures are reported as data, matching Send.
func (c *APIClient) Probe(ctx context.Context) Outcome {
	outcome := Outcome{Reference: "probe"}

	response, err := c.client.R().
		SetContext(ctx).
		Get(c.baseURL + "/v1/numbering-ranges")
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}

	outcome.StatusCode = response.StatusCode()
	outcome.Body = strings.TrimSpace(response.String())
	return outcome
}
