package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/queue"
	"github.com/facturio/invoice-engine/internal/repository"
)

var supportedUploadExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
	".xls":  {},
}

// BatchService registers uploaded invoice files and exposes batch state.
// Registration stages the file on disk, persists a PENDING batch and hands
// the work to the queue; processing happens in the worker.
type BatchService struct {
	batches   repository.BatchRepository
	records   repository.InvoiceRecordRepository
	publisher queue.Publisher
	uploadDir string
	logger    *zap.Logger
}

// BatchDetail is one batch with its aggregated record outcomes.
type BatchDetail struct {
	Batch domain.Batch
	Stats repository.BatchStats
}

func NewBatchService(
	batches repository.BatchRepository,
	records repository.InvoiceRecordRepository,
	publisher queue.Publisher,
	uploadDir string,
	logger *zap.Logger,
) (*BatchService, error) {
	if strings.TrimSpace(uploadDir) == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(uploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches:   batches,
		records:   records,
		publisher: publisher,
		uploadDir: uploadDir,
		logger:    logger,
	}, nil
}

// RegisterBatch stages the uploaded file, creates the batch in PENDING and
// enqueues it for processing. It returns the batch and the task identifier
// callers can use to correlate worker logs.
func (s *BatchService) RegisterBatch(ctx context.Context, filename string, content io.Reader) (*domain.Batch, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := supportedUploadExtensions[ext]; !ok {
		return nil, "", fmt.Errorf("%w: unsupported file extension %q", domain.ErrUnsupportedFormat, ext)
	}

	batch := &domain.Batch{
		ID:             uuid.NewString(),
		SourceFilename: filepath.Base(filename),
		Status:         domain.BatchStatusPending,
	}
	if err := batch.Validate(); err != nil {
		return nil, "", err
	}

	stagedPath := filepath.Join(s.uploadDir, batch.ID+ext)
	if err := stageFile(stagedPath, content); err != nil {
		return nil, "", err
	}

	if err := s.batches.Create(ctx, batch); err != nil {
		_ = os.Remove(stagedPath)
		return nil, "", err
	}

	taskID := uuid.NewString()
	msg := queue.BatchMessage{
		BatchID:  batch.ID,
		FilePath: stagedPath,
		TaskID:   taskID,
	}
	if err := s.publisher.Publish(ctx, queue.WorkQueue, msg); err != nil {
		s.logger.Error("failed to enqueue batch",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
		if finalizeErr := s.batches.Finalize(ctx, batch.ID, domain.BatchStatusError, 0, 0); finalizeErr != nil {
			s.logger.Error("failed to mark batch as error after publish failure",
				zap.String("batchId", batch.ID),
				zap.Error(finalizeErr),
			)
		}
		_ = os.Remove(stagedPath)
		return nil, "", fmt.Errorf("failed to enqueue batch: %w", err)
	}

	s.logger.Info("batch registered",
		zap.String("batchId", batch.ID),
		zap.String("taskId", taskID),
		zap.String("filename", batch.SourceFilename),
	)

	return batch, taskID, nil
}

func (s *BatchService) GetBatch(ctx context.Context, id string) (*BatchDetail, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.records.GetBatchStats(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BatchDetail{Batch: *batch, Stats: *stats}, nil
}

func (s *BatchService) ListBatches(ctx context.Context, params repository.ListBatchParams) ([]domain.Batch, int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.batches.List(ctx, params)
}

// ListBatchRecords returns the persisted invoice outcomes of one batch.
// The batch must exist; an unknown id is ErrNotFound, not an empty page.
func (s *BatchService) ListBatchRecords(ctx context.Context, batchID string, params repository.ListRecordParams) ([]domain.InvoiceRecord, int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, 0, err
	}

	params.BatchID = &batchID
	return s.records.List(ctx, params)
}

func stageFile(path string, content io.Reader) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to stage upload: %w", err)
	}

	if _, err := io.Copy(out, content); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write upload: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close upload: %w", err)
	}

	return nil
}
