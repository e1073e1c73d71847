package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/facturio/invoice-engine/internal/observability"
	"github.com/facturio/invoice-engine/internal/queue"
)

const minWorkerConcurrency = 1

// BatchProcessor runs the full pipeline for one staged batch.
type BatchProcessor interface {
	Run(ctx context.Context, batchID, filePath string) error
}

// WorkerService consumes the batch work queue and drives each message
// through the pipeline. Pipeline faults are absorbed: the pipeline already
// closed the batch as ERROR, so the message is acknowledged either way and
// never redelivered in a loop.
type WorkerService struct {
	consumer    queue.Consumer
	processor   BatchProcessor
	concurrency int
	logger      *zap.Logger
}

func NewWorkerService(
	consumer queue.Consumer,
	processor BatchProcessor,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("batch processor is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		processor:   processor,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Start consumes the work queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, queue.WorkQueue, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.BatchMessage) error {
	if msg.TaskID != "" {
		ctx = observability.WithTaskID(ctx, msg.TaskID)
	}

	if err := s.processor.Run(ctx, msg.BatchID, msg.FilePath); err != nil {
		// The batch is already closed as ERROR; surface the fault in the
		// logs only.
		s.logger.Error("batch pipeline failed",
			zap.String("batchId", msg.BatchID),
			zap.String("taskId", msg.TaskID),
			zap.Error(err),
		)
	}

	return nil
}
