package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale statuses. COMPLETED and CANCELED are terminal.
const (
	SaleOpen           = "OPEN"
	SalePendingPayment = "PENDING_PAYMENT"
	SaleCompleted      = "COMPLETED"
	SaleCanceled       = "CANCELED"
)

// Payment methods.
const (
	PaymentCash       = "CASH"
	PaymentCreditCard = "CREDIT_CARD"
	PaymentDebitCard  = "DEBIT_CARD"
	PaymentPix        = "PIX"
)

// Payment statuses — tracked for asynchronous methods only; synchronous
// payments (cash, card terminal) carry a nil status and are always confirmed.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Discount types.
const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

// Sale is the aggregate for one customer transaction: lines, discount,
// payments, status. Immutable once COMPLETED or CANCELED.
type Sale struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OperatorID uuid.UUID  `gorm:"type:uuid;not null;index"`
	BranchID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ShiftID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	CustomerID *uuid.UUID `gorm:"type:uuid"`
	CouponID   *uuid.UUID `gorm:"type:uuid"`

	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Status         string          `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Lines    []SaleLine    `gorm:"foreignKey:SaleID"`
	Payments []SalePayment `gorm:"foreignKey:SaleID"`
}

// SaleLine is one variant entry in a sale. UnitPrice is snapshotted when the
// line is added and never recomputed from the catalog, so totals stay
// reproducible even if catalog prices change mid-sale.
type SaleLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time
}

// SalePayment is one payment applied to a sale. A sale may carry several.
type SalePayment struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Method       string          `gorm:"type:varchar(15);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Installments int             `gorm:"not null;default:1"`
	// ExternalTransactionID and Status are set for asynchronous methods only.
	ExternalTransactionID *string `gorm:"type:varchar(80);index"`
	Status                *string `gorm:"type:varchar(10)"`
	CreatedAt             time.Time
}

// Confirmed reports whether this payment counts toward the sale's paid total.
// Synchronous methods are confirmed at creation; asynchronous ones only once
// the gateway reports PAID.
func (p *SalePayment) Confirmed() bool {
	return p.Status == nil || *p.Status == PaymentPaid
}
