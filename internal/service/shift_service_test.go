package service

import (
	"context"
	"testing"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOpenShift(t *testing.T) {
	env := newTestEnv()
	operatorID := uuid.New()

	resp, err := env.shifts.Open(context.Background(), operatorID, dto.OpenShiftRequest{InitialBalance: dec("100.00")})
	require.NoError(t, err)
	assert.Equal(t, model.ShiftOpen, resp.Status)
	assert.True(t, dec("100.00").Equal(resp.InitialBalance))

	// The opening float is an immutable ledger entry, not just a column.
	shiftID := uuid.MustParse(resp.ID)
	openings := env.shiftRepo.ledgerEntries(shiftID, model.MovementOpeningBalance)
	require.Len(t, openings, 1)
	assert.True(t, dec("100.00").Equal(openings[0].Amount))
}

func TestOpenShiftRejectsSecondOpen(t *testing.T) {
	env := newTestEnv()
	operatorID := uuid.New()

	_, err := env.shifts.Open(context.Background(), operatorID, dto.OpenShiftRequest{InitialBalance: dec("50.00")})
	require.NoError(t, err)

	_, err = env.shifts.Open(context.Background(), operatorID, dto.OpenShiftRequest{InitialBalance: dec("10.00")})
	assert.ErrorIs(t, err, apierror.ErrAlreadyOpen)

	// A different operator is unaffected.
	_, err = env.shifts.Open(context.Background(), uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("10.00")})
	assert.NoError(t, err)
}

func TestOpenShiftMapsDuplicateKey(t *testing.T) {
	// When two opens race past the existence check, the partial unique index
	// on open shifts rejects the second insert; the duplicate-key error must
	// surface as the business error, not a 500.
	env := newTestEnv()
	env.shiftRepo.createErr = gorm.ErrDuplicatedKey

	_, err := env.shifts.Open(context.Background(), uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("50.00")})
	assert.ErrorIs(t, err, apierror.ErrAlreadyOpen)
}

func TestOpenShiftRejectsNegativeBalance(t *testing.T) {
	env := newTestEnv()
	_, err := env.shifts.Open(context.Background(), uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("-1.00")})
	var invalid *apierror.InvalidStateError
	assert.ErrorAs(t, err, &invalid)
}

func TestCloseShift(t *testing.T) {
	env := newTestEnv()
	operatorID := uuid.New()

	resp, err := env.shifts.Open(context.Background(), operatorID, dto.OpenShiftRequest{InitialBalance: dec("100.00")})
	require.NoError(t, err)
	shiftID := uuid.MustParse(resp.ID)

	// Declared closing balance is recorded as-is, divergence included.
	closed, err := env.shifts.Close(context.Background(), shiftID, dto.CloseShiftRequest{FinalBalance: dec("90.00")})
	require.NoError(t, err)
	assert.Equal(t, model.ShiftClosed, closed.Status)
	require.NotNil(t, closed.FinalBalance)
	assert.True(t, dec("90.00").Equal(*closed.FinalBalance))
	assert.NotNil(t, closed.ClosedAt)

	closings := env.shiftRepo.ledgerEntries(shiftID, model.MovementClosingBalance)
	require.Len(t, closings, 1)
	assert.True(t, dec("90.00").Equal(closings[0].Amount))

	// Closing twice fails; the ledger keeps a single closing entry.
	_, err = env.shifts.Close(context.Background(), shiftID, dto.CloseShiftRequest{FinalBalance: dec("90.00")})
	assert.ErrorIs(t, err, apierror.ErrAlreadyClosed)
	assert.Len(t, env.shiftRepo.ledgerEntries(shiftID, model.MovementClosingBalance), 1)

	// And the operator can open a fresh shift afterwards.
	_, err = env.shifts.Open(context.Background(), operatorID, dto.OpenShiftRequest{InitialBalance: dec("100.00")})
	assert.NoError(t, err)
}

func TestRunningBalance(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.shifts.Open(ctx, uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("100.00")})
	require.NoError(t, err)
	shiftID := uuid.MustParse(resp.ID)

	_, err = env.shifts.Movement(ctx, shiftID, dto.MovementRequest{
		Type: model.MovementSupply, Amount: dec("50.00"), Description: "change from safe",
	})
	require.NoError(t, err)
	_, err = env.shifts.Movement(ctx, shiftID, dto.MovementRequest{
		Type: model.MovementBleed, Amount: dec("30.00"), Description: "excess to safe",
	})
	require.NoError(t, err)

	// A completed cash sale appends its own ledger entry.
	saleID := uuid.New()
	require.NoError(t, env.shiftRepo.CreateMovement(ctx, nil, &model.CashMovement{
		ShiftID: shiftID, Type: model.MovementSale, Amount: dec("75.00"), SaleID: &saleID,
	}))

	balance, err := env.shifts.CurrentBalance(ctx, shiftID)
	require.NoError(t, err)
	assert.True(t, dec("195.00").Equal(balance), "got %s", balance)

	// Closing does not disturb the running balance computation.
	_, err = env.shifts.Close(ctx, shiftID, dto.CloseShiftRequest{FinalBalance: dec("195.00")})
	require.NoError(t, err)
	balance, err = env.shifts.CurrentBalance(ctx, shiftID)
	require.NoError(t, err)
	assert.True(t, dec("195.00").Equal(balance))
}

func TestMovementRejectsOverdraw(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.shifts.Open(ctx, uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("20.00")})
	require.NoError(t, err)
	shiftID := uuid.MustParse(resp.ID)

	_, err = env.shifts.Movement(ctx, shiftID, dto.MovementRequest{
		Type: model.MovementBleed, Amount: dec("25.00"), Description: "too much",
	})
	var insufficient *apierror.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, dec("20.00").Equal(insufficient.Available))

	// The rejected movement left no ledger entry behind.
	movs, err := env.shifts.ListMovements(ctx, shiftID)
	require.NoError(t, err)
	assert.Len(t, movs, 1) // opening balance only
}

func TestMovementSignConvention(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.shifts.Open(ctx, uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("100.00")})
	require.NoError(t, err)
	shiftID := uuid.MustParse(resp.ID)

	mov, err := env.shifts.Movement(ctx, shiftID, dto.MovementRequest{
		Type: model.MovementExpense, Amount: dec("12.50"), Description: "cleaning supplies",
	})
	require.NoError(t, err)
	assert.True(t, dec("-12.50").Equal(mov.Amount), "the response echoes the stored entry")

	expenses := env.shiftRepo.ledgerEntries(shiftID, model.MovementExpense)
	require.Len(t, expenses, 1)
	assert.True(t, dec("-12.50").Equal(expenses[0].Amount), "outflows are stored negative")
}

func TestMovementOnClosedShift(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.shifts.Open(ctx, uuid.New(), dto.OpenShiftRequest{InitialBalance: dec("10.00")})
	require.NoError(t, err)
	shiftID := uuid.MustParse(resp.ID)
	_, err = env.shifts.Close(ctx, shiftID, dto.CloseShiftRequest{FinalBalance: dec("10.00")})
	require.NoError(t, err)

	_, err = env.shifts.Movement(ctx, shiftID, dto.MovementRequest{
		Type: model.MovementSupply, Amount: dec("5.00"), Description: "late supply",
	})
	var invalid *apierror.InvalidStateError
	assert.ErrorAs(t, err, &invalid)
}
