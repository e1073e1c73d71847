package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/facturio/invoice-engine/internal/domain"
)

type ListRecordParams struct {
	BatchID       *string
	Status        *domain.RecordStatus
	CustomerEmail *string
	Page          int
	PageSize      int
}

// BatchStats aggregates the outcomes of one batch for reporting.
type BatchStats struct {
	Total       int
	Sent        int
	Rejected    int
	RemoteError int
	TotalAmount float64
}

// SuccessRate is the percentage of invoices the remote service accepted.
func (s BatchStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Sent) / float64(s.Total) * 100
}

type InvoiceRecordRepository interface {
	Create(ctx context.Context, r *domain.InvoiceRecord) error
	CreateBatch(ctx context.Context, records []*domain.InvoiceRecord) error
	GetByID(ctx context.Context, id string) (*domain.InvoiceRecord, error)
	List(ctx context.Context, params ListRecordParams) ([]domain.InvoiceRecord, int64, error)
	GetBatchStats(ctx context.Context, batchID string) (*BatchStats, error)
}

type GormInvoiceRecordRepo struct {
	db *gorm.DB
}

func NewGormInvoiceRecordRepo(db *gorm.DB) *GormInvoiceRecordRepo {
	return &GormInvoiceRecordRepo{db: db}
}

func (r *GormInvoiceRecordRepo) Create(ctx context.Context, record *domain.InvoiceRecord) error {
	model := recordModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if record != nil {
		*record = *recordModelToDomain(model)
	}
	return nil
}

func (r *GormInvoiceRecordRepo) CreateBatch(ctx context.Context, records []*domain.InvoiceRecord) error {
	models := make([]InvoiceRecordModel, 0, len(records))
	modelIndexes := make([]int, 0, len(records))
	for i, record := range records {
		model := recordModelFromDomain(record)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, 100).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		if idx < len(records) && records[idx] != nil {
			*records[idx] = *recordModelToDomain(&models[i])
		}
	}

	return nil
}

func (r *GormInvoiceRecordRepo) GetByID(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	var model InvoiceRecordModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recordModelToDomain(&model), nil
}

func (r *GormInvoiceRecordRepo) List(ctx context.Context, params ListRecordParams) ([]domain.InvoiceRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&InvoiceRecordModel{})

	if params.BatchID != nil {
		query = query.Where("batch_id = ?", *params.BatchID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.CustomerEmail != nil {
		query = query.Where("customer_email = ?", *params.CustomerEmail)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []InvoiceRecordModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.InvoiceRecord, 0, len(models))
	for i := range models {
		records = append(records, *recordModelToDomain(&models[i]))
	}

	return records, total, nil
}

func (r *GormInvoiceRecordRepo) GetBatchStats(ctx context.Context, batchID string) (*BatchStats, error) {
	type statusAggregate struct {
		Status domain.RecordStatus `gorm:"column:status"`
		Count  int                 `gorm:"column:count"`
		Amount float64             `gorm:"column:amount"`
	}

	var aggregates []statusAggregate
	err := r.db.WithContext(ctx).
		Model(&InvoiceRecordModel{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(total), 0) as amount").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&aggregates).Error
	if err != nil {
		return nil, err
	}

	stats := &BatchStats{}
	for _, agg := range aggregates {
		stats.Total += agg.Count
		stats.TotalAmount += agg.Amount
		switch agg.Status {
		case domain.RecordStatusSent:
			stats.Sent = agg.Count
		case domain.RecordStatusRejected:
			stats.Rejected = agg.Count
		case domain.RecordStatusRemoteError:
			stats.RemoteError = agg.Count
		}
	}

	return stats, nil
}
