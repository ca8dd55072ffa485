package gateway

import (
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// installmentPlan computes the option list for a charge amount.
// Counts up to interestFreeMax split the amount evenly (remainder on the first
// installment is ignored here — providers round the same way). Counts above it
// apply simple interest of ratePct per installment beyond the free band.
func installmentPlan(amount decimal.Decimal, maxCount, interestFreeMax int, ratePct decimal.Decimal) []dto.InstallmentOption {
	if maxCount < 1 {
		maxCount = 1
	}
	options := make([]dto.InstallmentOption, 0, maxCount)
	for count := 1; count <= maxCount; count++ {
		total := amount
		hasInterest := count > interestFreeMax
		if hasInterest {
			extra := decimal.NewFromInt(int64(count - interestFreeMax))
			factor := decimal.NewFromInt(1).Add(ratePct.Mul(extra).Div(hundred))
			total = amount.Mul(factor)
		}
		per := total.Div(decimal.NewFromInt(int64(count))).Round(2)
		options = append(options, dto.InstallmentOption{
			Count:                count,
			AmountPerInstallment: per,
			HasInterest:          hasInterest,
		})
	}
	return options
}
