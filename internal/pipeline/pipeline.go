// Package pipeline runs one uploaded file through ingestion, transformation
// and dispatch, and drives the owning batch through its lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facturio/invoice-engine/internal/dispatch"
	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/ingest"
	"github.com/facturio/invoice-engine/internal/observability"
	"github.com/facturio/invoice-engine/internal/repository"
	"github.com/facturio/invoice-engine/internal/transform"
)

// Ingestor loads one source file and partitions its rows.
type Ingestor interface {
	Ingest(path string) (*ingest.Result, error)
}

// Dispatcher fans documents out to the invoicing service.
type Dispatcher interface {
	DispatchAll(ctx context.Context, documents []domain.InvoiceDocument) []dispatch.Outcome
}

// Pipeline processes one batch end to end: mark PROCESSING, ingest the
// file, persist rejections, dispatch the surviving documents, persist the
// outcomes and close the batch. Any fault closes the batch as ERROR; the
// uploaded file is removed either way.
type Pipeline struct {
	batches  repository.BatchRepository
	records  repository.InvoiceRecordRepository
	ingestor Ingestor
	disp     Dispatcher
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func New(
	batches repository.BatchRepository,
	records repository.InvoiceRecordRepository,
	ingestor Ingestor,
	disp Dispatcher,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		batches:  batches,
		records:  records,
		ingestor: ingestor,
		disp:     disp,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Pipeline) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// Run processes the batch identified by batchID from the staged file at
// filePath. A missing or already-closed batch is skipped, not an error;
// redeliveries after a crash land here. The returned error reports a fault
// after the batch was already closed as ERROR, so callers can log it and
// acknowledge the message regardless.
func (p *Pipeline) Run(ctx context.Context, batchID, filePath string) error {
	defer p.removeFile(filePath)

	logger := observability.WithContextLogger(p.logger, ctx).With(zap.String("batchId", batchID))

	batch, err := p.batches.GetByID(ctx, batchID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("batch not found, skipping")
		return nil
	}
	if err != nil {
		return p.fail(ctx, logger, batchID, fmt.Errorf("failed to load batch: %w", err))
	}
	if batch.Status.IsTerminal() {
		logger.Info("batch already closed, skipping redelivery",
			zap.String("status", batch.Status.String()),
		)
		return nil
	}

	if err := p.batches.Transition(ctx, batchID, domain.BatchStatusProcessing); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.Info("batch closed by another worker, skipping")
			return nil
		}
		return p.fail(ctx, logger, batchID, fmt.Errorf("failed to mark batch processing: %w", err))
	}

	start := p.now()
	p.metrics.IncPipelineInflight()
	defer func() {
		p.metrics.DecPipelineInflight()
		p.metrics.ObservePipelineDuration(p.now().Sub(start))
	}()

	result, err := p.ingestor.Ingest(filePath)
	if err != nil {
		return p.fail(ctx, logger, batchID, fmt.Errorf("failed to ingest file: %w", err))
	}
	p.metrics.AddRowsRejected(len(result.Rejected))

	// Rejections are committed before any dispatch happens so a crash
	// mid-dispatch never loses them.
	rejected := rejectedRecords(batchID, result.Rejected)
	if err := p.records.CreateBatch(ctx, rejected); err != nil {
		return p.fail(ctx, logger, batchID, fmt.Errorf("failed to persist rejected records: %w", err))
	}

	documents := transform.Documents(result.Accepted)
	outcomes := p.disp.DispatchAll(ctx, documents)

	dispatched := dispatchedRecords(batchID, documents, outcomes)
	if err := p.records.CreateBatch(ctx, dispatched); err != nil {
		return p.fail(ctx, logger, batchID, fmt.Errorf("failed to persist dispatch records: %w", err))
	}

	processed := len(documents) + len(rejected)
	if err := p.batches.Finalize(ctx, batchID, domain.BatchStatusCompleted, processed, processed); err != nil {
		return p.fail(ctx, logger, batchID, fmt.Errorf("failed to finalize batch: %w", err))
	}

	p.metrics.IncBatchProcessed(domain.BatchStatusCompleted.String())
	logger.Info("batch completed",
		zap.Int("documents", len(documents)),
		zap.Int("rejectedInvoices", len(rejected)),
		zap.Int("rejectedRows", len(result.Rejected)),
	)

	return nil
}

// fail closes the batch as ERROR best-effort and reports the fault.
func (p *Pipeline) fail(ctx context.Context, logger *zap.Logger, batchID string, cause error) error {
	logger.Error("batch failed", zap.Error(cause))
	p.metrics.IncBatchProcessed(domain.BatchStatusError.String())

	if err := p.batches.Finalize(ctx, batchID, domain.BatchStatusError, 0, 0); err != nil {
		logger.Error("failed to mark batch as error", zap.Error(err))
	}

	return cause
}

func (p *Pipeline) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove staged file",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// rejectedRecords collapses rejected rows into one record per invoice,
// keeping the first-seen row's reason and raw values. Totals are computed
// best-effort from the raw fields; a rejected invoice may not have
// parseable numbers.
func rejectedRecords(batchID string, rows []ingest.RejectedRow) []*domain.InvoiceRecord {
	seen := make(map[string]struct{}, len(rows))
	records := make([]*domain.InvoiceRecord, 0, len(rows))

	for _, row := range rows {
		if _, ok := seen[row.InvoiceID]; ok {
			continue
		}
		seen[row.InvoiceID] = struct{}{}

		reason := row.Reason
		records = append(records, &domain.InvoiceRecord{
			ID:              uuid.NewString(),
			BatchID:         &batchID,
			ReferenceCode:   row.InvoiceID,
			CustomerEmail:   row.Raw["cliente_email"],
			Total:           rawLineTotal(row.Raw),
			Status:          domain.RecordStatusRejected,
			RejectionReason: &reason,
		})
	}

	return records
}

func rawLineTotal(raw map[string]string) float64 {
	price, err := strconv.ParseFloat(raw["precio_unitario"], 64)
	if err != nil {
		return 0
	}
	quantity, err := strconv.ParseFloat(raw["cantidad"], 64)
	if err != nil {
		return 0
	}
	return price * quantity
}

// dispatchedRecords pairs documents with their outcomes positionally.
func dispatchedRecords(batchID string, documents []domain.InvoiceDocument, outcomes []dispatch.Outcome) []*domain.InvoiceRecord {
	records := make([]*domain.InvoiceRecord, 0, len(documents))

	for i, doc := range documents {
		if i >= len(outcomes) {
			break
		}
		outcome := outcomes[i]

		record := &domain.InvoiceRecord{
			ID:            uuid.NewString(),
			BatchID:       &batchID,
			ReferenceCode: doc.ReferenceCode,
			CustomerEmail: doc.Customer.Email,
			Total:         doc.GrossTotal,
			Status:        domain.RecordStatusSent,
		}

		if outcome.Body != "" {
			body := outcome.Body
			record.APIResponse = &body
		}
		if !outcome.Success() {
			record.Status = domain.RecordStatusRemoteError
			reason := outcome.FailureReason()
			record.RejectionReason = &reason
		}

		records = append(records, record)
	}

	return records
}
