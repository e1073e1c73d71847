package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/observability"
)

// Coordinator fans a batch of documents out to the invoicing service with
// every call in flight at once. No client-side concurrency cap is imposed;
// throughput is bounded only by the remote service. Each call carries its
// own timeout, so one slow invoice never blocks the rest, and the
// coordinator waits for the slowest call.
type Coordinator struct {
	client  Client
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewCoordinator(client Client, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Coordinator) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// DispatchAll sends every document concurrently and returns one outcome
// per document, positionally: outcomes[i] belongs to documents[i].
// Documents carry no remote-assigned key before dispatch, so position is
// the correlation.
func (c *Coordinator) DispatchAll(ctx context.Context, documents []domain.InvoiceDocument) []Outcome {
	outcomes := make([]Outcome, len(documents))
	if len(documents) == 0 {
		return outcomes
	}

	var wg sync.WaitGroup
	for i := range documents {
		wg.Add(1)
		go func(slot int, doc domain.InvoiceDocument) {
			defer wg.Done()

			start := c.now()
			outcome := c.client.Send(ctx, doc)
			outcomes[slot] = outcome

			if c.metrics != nil {
				c.metrics.ObserveDispatchDuration(c.now().Sub(start))
				c.metrics.IncInvoiceDispatched(outcome.Success())
			}
			if !outcome.Success() {
				c.logger.Warn("invoice dispatch failed",
					zap.String("reference", doc.ReferenceCode),
					zap.Int("status", outcome.StatusCode),
					zap.String("error", outcome.Err),
				)
			}
		}(i, documents[i])
	}
	wg.Wait()

	return outcomes
}
