package dto

import (
	"github.com/shopspring/decimal"
)

type OpenShiftRequest struct {
	InitialBalance decimal.Decimal `json:"initial_balance" validate:"min=0"`
}

type CloseShiftRequest struct {
	FinalBalance decimal.Decimal `json:"final_balance" validate:"min=0"`
}

// MovementRequest registers a manual SUPPLY, BLEED or EXPENSE entry.
type MovementRequest struct {
	Type        string          `json:"type" validate:"required,oneof=SUPPLY BLEED EXPENSE"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description string          `json:"description" validate:"required"`
}

type ShiftResponse struct {
	ID             string           `json:"id"`
	OperatorID     string           `json:"operator_id"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	FinalBalance   *decimal.Decimal `json:"final_balance,omitempty"`
	Status         string           `json:"status"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at,omitempty"`
}

type BalanceResponse struct {
	ShiftID string          `json:"shift_id"`
	Balance decimal.Decimal `json:"balance"`
}

type MovementResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	SaleID      *string         `json:"sale_id,omitempty"`
	CreatedAt   string          `json:"created_at"`
}
