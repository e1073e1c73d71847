package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/facturio/invoice-engine/internal/domain"
)

const simulatedLatency = 100 * time.Millisecond

// SimulatedClient accepts every invoice without touching the network.
// It exists for local runs and demos against no invoicing account, the
// same short-circuit the service has always offered in test mode.
type SimulatedClient struct {
	latency time.Duration
}

func NewSimulatedClient() *SimulatedClient {
	return &SimulatedClient{latency: simulatedLatency}
}

func (c *SimulatedClient) Send(ctx context.Context, doc domain.InvoiceDocument) Outcome {
	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Outcome{Reference: doc.ReferenceCode, Err: ctx.Err().Error()}
		case <-timer.C:
		}
	}

	body, _ := json.Marshal(map[string]any{
		"message": "Bill validated successfully [SIMULATION]",
		"data": map[string]any{
			"bill": map[string]string{
				"number": doc.ReferenceCode,
				"qr":     "simulated-qr",
				"cufe":   "simulated-cufe",
			},
		},
	})

	return Outcome{
		Reference:  doc.ReferenceCode,
		StatusCode: http.StatusCreated,
		Body:       string(body),
	}
}
