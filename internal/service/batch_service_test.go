package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/queue"
	"github.com/facturio/invoice-engine/internal/repository"
)

type fakeBatchRepo struct {
	mu        sync.Mutex
	batches   map[string]*domain.Batch
	createErr error
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: map[string]*domain.Batch{}}
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *b
	f.batches[b.ID] = &copied
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBatchRepo) List(ctx context.Context, params repository.ListBatchParams) ([]domain.Batch, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Batch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, *b)
	}
	return out, int64(len(out)), nil
}

func (f *fakeBatchRepo) Transition(ctx context.Context, id string, status domain.BatchStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = status
	return nil
}

func (f *fakeBatchRepo) Finalize(ctx context.Context, id string, status domain.BatchStatus, totalRecords, processedRecords int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = status
	b.TotalRecords = totalRecords
	b.ProcessedRecords = processedRecords
	return nil
}

type fakeRecordRepo struct {
	mu        sync.Mutex
	records   []domain.InvoiceRecord
	createErr error
	stats     repository.BatchStats
}

func (f *fakeRecordRepo) Create(ctx context.Context, r *domain.InvoiceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeRecordRepo) CreateBatch(ctx context.Context, records []*domain.InvoiceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.records = append(f.records, *r)
	}
	return nil
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			copied := r
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRecordRepo) List(ctx context.Context, params repository.ListRecordParams) ([]domain.InvoiceRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InvoiceRecord
	for _, r := range f.records {
		if params.BatchID != nil && (r.BatchID == nil || *r.BatchID != *params.BatchID) {
			continue
		}
		if params.CustomerEmail != nil && r.CustomerEmail != *params.CustomerEmail {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (f *fakeRecordRepo) GetBatchStats(ctx context.Context, batchID string) (*repository.BatchStats, error) {
	stats := f.stats
	return &stats, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	published  []queue.BatchMessage
	publishErr error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.BatchMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func newTestBatchService(t *testing.T, batches *fakeBatchRepo, records *fakeRecordRepo, publisher *fakePublisher) *BatchService {
	t.Helper()
	svc, err := NewBatchService(batches, records, publisher, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}
	return svc
}

func TestRegisterBatchStagesFileAndPublishes(t *testing.T) {
	t.Parallel()

	batches := newFakeBatchRepo()
	publisher := &fakePublisher{}
	svc := newTestBatchService(t, batches, &fakeRecordRepo{}, publisher)

	content := "id_factura,cliente_nombre,cliente_email,producto,precio_unitario,cantidad,iva_porcentaje\n"
	batch, taskID, err := svc.RegisterBatch(context.Background(), "facturas.csv", strings.NewReader(content))
	if err != nil {
		t.Fatalf("RegisterBatch() error = %v", err)
	}

	if batch.Status != domain.BatchStatusPending {
		t.Fatalf("batch status = %s, want PENDING", batch.Status)
	}
	if batch.SourceFilename != "facturas.csv" {
		t.Fatalf("source filename = %q, want facturas.csv", batch.SourceFilename)
	}
	if taskID == "" {
		t.Fatal("expected a task id")
	}

	if len(publisher.published) != 1 {
		t.Fatalf("published messages = %d, want 1", len(publisher.published))
	}
	msg := publisher.published[0]
	if msg.BatchID != batch.ID || msg.TaskID != taskID {
		t.Fatalf("published message = %+v, want batch %s task %s", msg, batch.ID, taskID)
	}

	staged, err := os.ReadFile(msg.FilePath)
	if err != nil {
		t.Fatalf("staged file unreadable: %v", err)
	}
	if string(staged) != content {
		t.Fatal("staged file content mismatch")
	}
}

func TestRegisterBatchRejectsUnsupportedExtension(t *testing.T) {
	t.Parallel()

	svc := newTestBatchService(t, newFakeBatchRepo(), &fakeRecordRepo{}, &fakePublisher{})

	_, _, err := svc.RegisterBatch(context.Background(), "facturas.pdf", strings.NewReader("x"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRegisterBatchPublishFailureClosesBatch(t *testing.T) {
	t.Parallel()

	batches := newFakeBatchRepo()
	publisher := &fakePublisher{publishErr: fmt.Errorf("broker down")}
	svc := newTestBatchService(t, batches, &fakeRecordRepo{}, publisher)

	_, _, err := svc.RegisterBatch(context.Background(), "facturas.csv", strings.NewReader("header\n"))
	if err == nil {
		t.Fatal("expected error when publish fails")
	}

	batches.mu.Lock()
	defer batches.mu.Unlock()
	if len(batches.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches.batches))
	}
	for _, b := range batches.batches {
		if b.Status != domain.BatchStatusError {
			t.Fatalf("batch status = %s, want ERROR", b.Status)
		}
	}
}

func TestGetBatchIncludesStats(t *testing.T) {
	t.Parallel()

	batches := newFakeBatchRepo()
	records := &fakeRecordRepo{stats: repository.BatchStats{Total: 4, Sent: 3, Rejected: 1}}
	svc := newTestBatchService(t, batches, records, &fakePublisher{})

	batch := &domain.Batch{ID: "b1", SourceFilename: "f.csv", Status: domain.BatchStatusCompleted}
	_ = batches.Create(context.Background(), batch)

	detail, err := svc.GetBatch(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if detail.Stats.Total != 4 || detail.Stats.Sent != 3 {
		t.Fatalf("stats = %+v", detail.Stats)
	}
	if detail.Stats.SuccessRate() != 75 {
		t.Fatalf("success rate = %v, want 75", detail.Stats.SuccessRate())
	}
}

func TestGetBatchNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestBatchService(t, newFakeBatchRepo(), &fakeRecordRepo{}, &fakePublisher{})

	_, err := svc.GetBatch(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListBatchRecordsRequiresExistingBatch(t *testing.T) {
	t.Parallel()

	batches := newFakeBatchRepo()
	records := &fakeRecordRepo{}
	svc := newTestBatchService(t, batches, records, &fakePublisher{})

	_, _, err := svc.ListBatchRecords(context.Background(), "missing", repository.ListRecordParams{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	batch := &domain.Batch{ID: "b1", SourceFilename: "f.csv", Status: domain.BatchStatusCompleted}
	_ = batches.Create(context.Background(), batch)

	batchID := "b1"
	otherID := "b2"
	records.records = []domain.InvoiceRecord{
		{ID: "r1", BatchID: &batchID, ReferenceCode: "F001", Status: domain.RecordStatusSent},
		{ID: "r2", BatchID: &otherID, ReferenceCode: "F002", Status: domain.RecordStatusSent},
	}

	out, total, err := svc.ListBatchRecords(context.Background(), "b1", repository.ListRecordParams{})
	if err != nil {
		t.Fatalf("ListBatchRecords() error = %v", err)
	}
	if total != 1 || len(out) != 1 || out[0].ID != "r1" {
		t.Fatalf("records = %+v, want only r1", out)
	}
}
