package dto

import (
	"github.com/shopspring/decimal"
)

type StartSaleRequest struct {
	BranchID   string  `json:"branch_id" validate:"required,uuid4"`
	ShiftID    string  `json:"shift_id" validate:"required,uuid4"`
	CustomerID *string `json:"customer_id,omitempty" validate:"omitempty,uuid4"`
	CouponCode *string `json:"coupon_code,omitempty"`
}

type AddLineRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type DiscountRequest struct {
	Type  string          `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value decimal.Decimal `json:"value" validate:"min=0"`
}

type AddPaymentRequest struct {
	Method       string          `json:"method" validate:"required,oneof=CASH CREDIT_CARD DEBIT_CARD PIX"`
	Amount       decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Installments int             `json:"installments" validate:"min=1"`
}

type SaleLineResponse struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variant_id"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type SalePaymentResponse struct {
	ID                    string          `json:"id"`
	Method                string          `json:"method"`
	Amount                decimal.Decimal `json:"amount"`
	Installments          int             `json:"installments"`
	ExternalTransactionID *string         `json:"external_transaction_id,omitempty"`
	Status                *string         `json:"status,omitempty"`
}

type SaleResponse struct {
	ID             string                `json:"id"`
	ShiftID        string                `json:"shift_id"`
	BranchID       string                `json:"branch_id"`
	Status         string                `json:"status"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	FinalAmount    decimal.Decimal       `json:"final_amount"`
	Lines          []SaleLineResponse    `json:"lines"`
	Payments       []SalePaymentResponse `json:"payments"`
	CreatedAt      string                `json:"created_at"`
}
