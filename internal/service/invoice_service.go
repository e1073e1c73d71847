package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facturio/invoice-engine/internal/dispatch"
	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/ingest"
	"github.com/facturio/invoice-engine/internal/ratelimit"
	"github.com/facturio/invoice-engine/internal/repository"
	"github.com/facturio/invoice-engine/internal/transform"
)

// rateLimitScope throttles ad-hoc submissions; batch dispatch is
// intentionally unthrottled.
const rateLimitScope = "invoices:submit"

// SubmitInvoiceInput is one invoice submitted outside a batch.
type SubmitInvoiceInput struct {
	InvoiceID     string
	CustomerName  string
	CustomerEmail string
	Items         []SubmitItemInput
}

type SubmitItemInput struct {
	Product   string
	UnitPrice float64
	Quantity  int64
	TaxRate   float64
}

// InvoiceService submits individual invoices to the invoicing service,
// applying the same validation and transformation rules the batch pipeline
// uses.
type InvoiceService struct {
	records     repository.InvoiceRecordRepository
	client      dispatch.Client
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
}

func NewInvoiceService(
	records repository.InvoiceRecordRepository,
	client dispatch.Client,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*InvoiceService, error) {
	if client == nil {
		return nil, fmt.Errorf("dispatch client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InvoiceService{
		records:     records,
		client:      client,
		rateLimiter: rateLimiter,
		logger:      logger,
	}, nil
}

// SubmitInvoice validates, dispatches and persists one invoice. A remote
// refusal is not an error: it is persisted as REMOTE_ERROR and returned to
// the caller in the record.
func (s *InvoiceService) SubmitInvoice(ctx context.Context, input SubmitInvoiceInput) (*domain.InvoiceRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := submissionRows(input)
	if err != nil {
		return nil, err
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, rateLimitScope); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	documents := transform.Documents(rows)
	if len(documents) != 1 {
		return nil, fmt.Errorf("%w: submission must produce exactly one invoice", domain.ErrValidation)
	}
	doc := documents[0]

	outcome := s.client.Send(ctx, doc)

	record := &domain.InvoiceRecord{
		ID:            uuid.NewString(),
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

		s.logger.Warn("invoice submission failed remotely",
			zap.String("reference", doc.ReferenceCode),
			zap.Int("status", outcome.StatusCode),
		)
	}

	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist invoice record: %w", err)
	}

	return record, nil
}

func (s *InvoiceService) GetRecord(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: record id is required", domain.ErrValidation)
	}
	return s.records.GetByID(ctx, id)
}

func (s *InvoiceService) ListRecords(ctx context.Context, params repository.ListRecordParams) ([]domain.InvoiceRecord, int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.records.List(ctx, params)
}

// submissionRows maps the input onto pipeline rows and applies the row
// validation rules, so ad-hoc submissions cannot bypass them.
func submissionRows(input SubmitInvoiceInput) ([]ingest.Row, error) {
	if strings.TrimSpace(input.InvoiceID) == "" {
		return nil, fmt.Errorf("%w: invoice id is required", domain.ErrValidation)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", domain.ErrValidation)
	}

	rows := make([]ingest.Row, 0, len(input.Items))
	for i, item := range input.Items {
		price := item.UnitPrice
		quantity := item.Quantity
		taxRate := item.TaxRate

		row := ingest.Row{
			Position:      i + 1,
			InvoiceID:     strings.TrimSpace(input.InvoiceID),
			CustomerName:  strings.TrimSpace(input.CustomerName),
			CustomerEmail: strings.TrimSpace(input.CustomerEmail),
			Product:       strings.TrimSpace(item.Product),
			UnitPrice:     &price,
			Quantity:      &quantity,
			TaxRate:       &taxRate,
		}

		if valid, reason := ingest.ValidateRow(row); !valid {
			return nil, fmt.Errorf("%w: line %d: %s", domain.ErrValidation, i+1, reason)
		}

		rows = append(rows, row)
	}

	return rows, nil
}
