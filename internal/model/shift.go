package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shift statuses.
const (
	ShiftOpen   = "OPEN"
	ShiftClosed = "CLOSED"
)

// Cash movement types. OPENING_BALANCE and CLOSING_BALANCE bracket the shift;
// everything in between is a SALE, SUPPLY, BLEED or EXPENSE entry.
const (
	MovementOpeningBalance = "OPENING_BALANCE"
	MovementSale           = "SALE"
	MovementSupply         = "SUPPLY"
	MovementBleed          = "BLEED"
	MovementExpense        = "EXPENSE"
	MovementClosingBalance = "CLOSING_BALANCE"
)

// RegisterShift represents one operator's open-to-close register cycle.
// At most one OPEN shift may exist per operator at any time.
type RegisterShift struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OperatorID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// FinalBalance is the operator-declared closing amount. It is recorded
	// as-is and never validated against the computed balance.
	FinalBalance *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status       string           `gorm:"type:varchar(10);not null;default:'OPEN';index"`
	OpenedAt     time.Time
	ClosedAt     *time.Time

	Movements []CashMovement `gorm:"foreignKey:ShiftID"`
}

// CashMovement is an immutable entry in a shift's cash ledger.
// Movements are NEVER modified or deleted — corrections create inverse entries.
// Running balance = Σ(amount) over all entries except CLOSING_BALANCE
// (the OPENING_BALANCE entry carries the initial balance).
type CashMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type        string          `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description string          `gorm:"not null"`
	// SaleID links SALE entries back to the originating sale.
	SaleID    *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time
}

// TableName overrides GORM's pluralization (cash_movements is fine, but
// register_shifts reads better than the default).
func (RegisterShift) TableName() string { return "register_shifts" }
