package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pending charge statuses.
const (
	ChargePending  = "PENDING"
	ChargePaid     = "PAID"
	ChargeCanceled = "CANCELED"
	ChargeExpired  = "EXPIRED"
)

// PendingCharge is a gateway-issued payment intent awaiting confirmation.
// ExternalTransactionID is the idempotency key for webhook replay: every
// inbound gateway event resolves through this table and nothing else.
type PendingCharge struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ExternalTransactionID string          `gorm:"type:varchar(80);uniqueIndex;not null"`
	SaleID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	SalePaymentID         uuid.UUID       `gorm:"type:uuid;not null"`
	Gateway               string          `gorm:"type:varchar(30);not null"`
	Amount                decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status                string          `gorm:"type:varchar(10);not null;default:'PENDING';index"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
