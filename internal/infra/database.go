package infra

import (
	"fmt"

	"billpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate for
// the ledger and catalog tables, then applies the idempotent SQL patches that
// GORM cannot express (partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table and applies schema patches.
// Used at startup and by the integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Category{},
		&model.PriceGroup{},
		&model.Modifier{},
		&model.ModifierItem{},
		&model.ModifierItemPrice{},
		&model.Item{},
		&model.ItemPrice{},
		&model.PaymentType{},
		&model.Discount{},
		&model.Printer{},
		&model.PrinterGroup{},
		&model.BillPeriod{},
		&model.Bill{},
		&model.BillItem{},
		&model.BillItemModifierItem{},
		&model.BillDiscount{},
		&model.BillPayment{},
		&model.BillItemPrintLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that AutoMigrate cannot
// express. Each statement uses IF NOT EXISTS so re-running is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// a reference may be reused once the bill holding it is closed
		{"open bill reference unique per period", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_bills_open_reference
    ON bills (bill_period_id, reference)
    WHERE is_closed = false`},
		// at most one open period
		{"single open period", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_bill_periods_single_open
    ON bill_periods ((closed_at IS NULL))
    WHERE closed_at IS NULL`},
		// dispatcher and sweeper scans
		{"print logs by status", `
CREATE INDEX IF NOT EXISTS idx_print_logs_pending
    ON bill_item_print_logs (bill_id, created_at)
    WHERE status = 'pending'`},
		{"print logs processing", `
CREATE INDEX IF NOT EXISTS idx_print_logs_processing
    ON bill_item_print_logs (updated_at)
    WHERE status = 'processing'`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
