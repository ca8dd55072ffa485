package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock movement types.
const (
	StockMovementSale    = "sale"
	StockMovementRestore = "restore_cancellation"
	StockMovementAdjust  = "manual_adjustment"
)

// InventoryRecord holds the on-hand quantity for one variant at one branch.
// Mutated exclusively through the locking decrement at sale-finish time.
type InventoryRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_variant"`
	VariantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_variant"`
	Quantity  int       `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// StockMovement records every stock change with before/after quantities.
// For sales it also serves as the idempotency guard: a sale whose movements
// already exist is never decremented a second time.
type StockMovement struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	VariantID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type           string     `gorm:"type:varchar(25);not null"`
	Quantity       int        `gorm:"not null"` // positive = in, negative = out
	QuantityBefore int        `gorm:"not null"`
	QuantityAfter  int        `gorm:"not null"`
	SaleID         *uuid.UUID `gorm:"type:uuid;index"`
	Reason         string
	CreatedAt      time.Time
}
