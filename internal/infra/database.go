package infra

import (
	"fmt"

	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and runs AutoMigrate
// to create / update all tables.
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
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return db, nil
}

// RunMigrations applies the schema. Also used by integration tests against a
// throwaway container database.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return err
	}
	if err := db.AutoMigrate(
		&model.RegisterShift{},
		&model.CashMovement{},
		&model.Sale{},
		&model.SaleLine{},
		&model.SalePayment{},
		&model.InventoryRecord{},
		&model.StockMovement{},
		&model.PendingCharge{},
		&model.Variant{},
		&model.Coupon{},
	); err != nil {
		return err
	}

	// AutoMigrate tags cannot express a partial unique index. This one is the
	// DB-level backstop for the one-open-shift-per-operator invariant: two
	// transactions that both pass the application guard cannot both commit.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_register_shifts_operator_open
		ON register_shifts (operator_id) WHERE status = 'OPEN'`).Error
}
