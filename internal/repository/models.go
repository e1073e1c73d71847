package repository

import (
	"time"

	"github.com/facturio/invoice-engine/internal/domain"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID               string             `gorm:"type:uuid;primaryKey"`
	SourceFilename   string             `gorm:"type:varchar(255);not null"`
	TotalRecords     int                `gorm:"not null;default:0"`
	ProcessedRecords int                `gorm:"not null;default:0"`
	Status           domain.BatchStatus `gorm:"type:varchar(20);not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// InvoiceRecordModel is the persistence model for invoice_records.
type InvoiceRecordModel struct {
	ID              string              `gorm:"type:uuid;primaryKey"`
	BatchID         *string             `gorm:"type:uuid"`
	ReferenceCode   string              `gorm:"type:varchar(100);not null"`
	CustomerEmail   string              `gorm:"type:varchar(255);not null"`
	Total           float64             `gorm:"not null;default:0"`
	Status          domain.RecordStatus `gorm:"type:varchar(20);not null"`
	RejectionReason *string             `gorm:"type:text"`
	APIResponse     *string             `gorm:"type:text"`
	CreatedAt       time.Time
}

func (InvoiceRecordModel) TableName() string {
	return "invoice_records"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:               b.ID,
		SourceFilename:   b.SourceFilename,
		TotalRecords:     b.TotalRecords,
		ProcessedRecords: b.ProcessedRecords,
		Status:           b.Status,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:               m.ID,
		SourceFilename:   m.SourceFilename,
		TotalRecords:     m.TotalRecords,
		ProcessedRecords: m.ProcessedRecords,
		Status:           m.Status,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func recordModelFromDomain(r *domain.InvoiceRecord) *InvoiceRecordModel {
	if r == nil {
		return nil
	}

	return &InvoiceRecordModel{
		ID:              r.ID,
		BatchID:         r.BatchID,
		ReferenceCode:   r.ReferenceCode,
		CustomerEmail:   r.CustomerEmail,
		Total:           r.Total,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		APIResponse:     r.APIResponse,
		CreatedAt:       r.CreatedAt,
	}
}

func recordModelToDomain(m *InvoiceRecordModel) *domain.InvoiceRecord {
	if m == nil {
		return nil
	}

	return &domain.InvoiceRecord{
		ID:              m.ID,
		BatchID:         m.BatchID,
		ReferenceCode:   m.ReferenceCode,
		CustomerEmail:   m.CustomerEmail,
		Total:           m.Total,
		Status:          m.Status,
		RejectionReason: m.RejectionReason,
		APIResponse:     m.APIResponse,
		CreatedAt:       m.CreatedAt,
	}
}
