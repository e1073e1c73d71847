package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/facturio/invoice-engine/internal/domain"
)

type ListBatchParams struct {
	Status   *domain.BatchStatus
	Page     int
	PageSize int
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	List(ctx context.Context, params ListBatchParams) ([]domain.Batch, int64, error)
	// Transition moves the batch to status unless it already reached a
	// terminal state; terminal batches return ErrConflict.
	Transition(ctx context.Context, id string, status domain.BatchStatus) error
	// Finalize closes the batch with its terminal status and authoritative
	// record counts.
	Finalize(ctx context.Context, id string, status domain.BatchStatus, totalRecords, processedRecords int) error
}

var terminalStatuses = []domain.BatchStatus{
	domain.BatchStatusCompleted,
	domain.BatchStatusError,
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) List(ctx context.Context, params ListBatchParams) ([]domain.Batch, int64, error) {
	query := r.db.WithContext(ctx).Model(&BatchModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
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

	var models []BatchModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, total, nil
}

func (r *GormBatchRepo) Transition(ctx context.Context, id string, status domain.BatchStatus) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.resolveGuardMiss(ctx, id)
	}
	return nil
}

func (r *GormBatchRepo) Finalize(ctx context.Context, id string, status domain.BatchStatus, totalRecords, processedRecords int) error {
	if !status.IsTerminal() {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Updates(map[string]any{
			"status":            status,
			"total_records":     totalRecords,
			"processed_records": processedRecords,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.resolveGuardMiss(ctx, id)
	}
	return nil
}

// resolveGuardMiss distinguishes a missing batch from one already closed.
func (r *GormBatchRepo) resolveGuardMiss(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
