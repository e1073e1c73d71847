package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/facturio/invoice-engine/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createBatchesTable(),
		createInvoiceRecordsTable(),
	})

	return m.Migrate()
}

func createBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batches_status_created ON batches (status, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}

func createInvoiceRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_invoice_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.InvoiceRecordModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_invoice_records_batch_id ON invoice_records (batch_id) WHERE batch_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_invoice_records_status ON invoice_records (status)`,
				`CREATE INDEX IF NOT EXISTS idx_invoice_records_reference_code ON invoice_records (reference_code)`,
				`CREATE INDEX IF NOT EXISTS idx_invoice_records_customer_email ON invoice_records (customer_email)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InvoiceRecordModel{})
		},
	}
}
