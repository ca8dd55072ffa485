package service

import (
	"context"
	"errors"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"
	"github.com/leonardodevbr/siscondi-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShiftService interface {
	Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenShiftRequest) (*dto.ShiftResponse, error)
	Close(ctx context.Context, shiftID uuid.UUID, req dto.CloseShiftRequest) (*dto.ShiftResponse, error)
	Movement(ctx context.Context, shiftID uuid.UUID, req dto.MovementRequest) (*dto.MovementResponse, error)
	CurrentBalance(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error)
	ListMovements(ctx context.Context, shiftID uuid.UUID) ([]dto.MovementResponse, error)
	// RequireOpen is called by SaleService before starting a sale.
	RequireOpen(ctx context.Context, shiftID uuid.UUID) (*model.RegisterShift, error)
}

type shiftService struct {
	repo repository.ShiftRepository
}

func NewShiftService(repo repository.ShiftRepository) ShiftService {
	return &shiftService{repo: repo}
}

// ── Open ──────────────────────────────────────────────────────────────────────
// The uniqueness check runs on the creating transaction, and the partial
// unique index on (operator_id) WHERE status = 'OPEN' backstops it: when two
// concurrent opens both pass the guard, the second insert fails on the index
// and surfaces as ErrAlreadyOpen.

func (s *shiftService) Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenShiftRequest) (*dto.ShiftResponse, error) {
	if req.InitialBalance.IsNegative() {
		return nil, &apierror.InvalidStateError{Entity: "shift", Status: "negative initial balance"}
	}

	var shift model.RegisterShift
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		existing, err := s.repo.FindOpenByOperator(ctx, tx, operatorID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apierror.ErrAlreadyOpen
		}

		shift = model.RegisterShift{
			OperatorID:     operatorID,
			InitialBalance: req.InitialBalance,
			Status:         model.ShiftOpen,
			OpenedAt:       time.Now(),
		}
		if err := s.repo.Create(ctx, tx, &shift); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierror.ErrAlreadyOpen
			}
			return err
		}

		opening := model.CashMovement{
			ShiftID:     shift.ID,
			Type:        model.MovementOpeningBalance,
			Amount:      req.InitialBalance,
			Description: "shift opened",
		}
		return s.repo.CreateMovement(ctx, tx, &opening)
	})
	if txErr != nil {
		return nil, txErr
	}

	return shiftToResponse(&shift), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// The declared final balance is recorded as-is: the CLOSING_BALANCE entry
// carries whatever the operator counted, divergence included.

func (s *shiftService) Close(ctx context.Context, shiftID uuid.UUID, req dto.CloseShiftRequest) (*dto.ShiftResponse, error) {
	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.NotFound("shift")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.ErrAlreadyClosed
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		closing := model.CashMovement{
			ShiftID:     shift.ID,
			Type:        model.MovementClosingBalance,
			Amount:      req.FinalBalance,
			Description: "shift closed",
		}
		if err := s.repo.CreateMovement(ctx, tx, &closing); err != nil {
			return err
		}

		now := time.Now()
		final := req.FinalBalance
		shift.FinalBalance = &final
		shift.Status = model.ShiftClosed
		shift.ClosedAt = &now
		return s.repo.Update(ctx, tx, shift)
	})
	if txErr != nil {
		return nil, txErr
	}

	return shiftToResponse(shift), nil
}

// ── Movement ──────────────────────────────────────────────────────────────────
// SUPPLY adds cash to the drawer; BLEED and EXPENSE remove it and must not
// drive the running balance below zero. The balance read and the append run
// with the shift row locked so two concurrent outflows cannot both pass the
// overdraw check.

func (s *shiftService) Movement(ctx context.Context, shiftID uuid.UUID, req dto.MovementRequest) (*dto.MovementResponse, error) {
	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.NotFound("shift")
	}
	if shift.Status != model.ShiftOpen {
		return nil, &apierror.InvalidStateError{Entity: "shift", Status: shift.Status}
	}

	mov := model.CashMovement{
		ShiftID:     shiftID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}

	if req.Type == model.MovementBleed || req.Type == model.MovementExpense {
		mov.Amount = req.Amount.Neg()
		txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			if tx != nil {
				if _, err := s.repo.FindByIDForUpdate(ctx, tx, shiftID); err != nil {
					return err
				}
			}
			balance, err := s.repo.SumMovements(ctx, tx, shiftID)
			if err != nil {
				return err
			}
			if balance.LessThan(req.Amount) {
				return &apierror.InsufficientBalanceError{Available: balance}
			}
			return s.repo.CreateMovement(ctx, tx, &mov)
		})
		if txErr != nil {
			return nil, txErr
		}
		return movementToResponse(&mov), nil
	}

	if err := s.repo.CreateMovement(ctx, nil, &mov); err != nil {
		return nil, err
	}
	return movementToResponse(&mov), nil
}

// CurrentBalance is a pure function of ledger state: the sum of every entry
// except CLOSING_BALANCE (the OPENING_BALANCE entry carries the initial float).
func (s *shiftService) CurrentBalance(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.repo.FindByID(ctx, shiftID); err != nil {
		return decimal.Zero, apierror.NotFound("shift")
	}
	return s.repo.SumMovements(ctx, nil, shiftID)
}

func (s *shiftService) ListMovements(ctx context.Context, shiftID uuid.UUID) ([]dto.MovementResponse, error) {
	movs, err := s.repo.ListMovements(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for i := range movs {
		out = append(out, *movementToResponse(&movs[i]))
	}
	return out, nil
}

func movementToResponse(m *model.CashMovement) *dto.MovementResponse {
	resp := &dto.MovementResponse{
		ID:          m.ID.String(),
		Type:        m.Type,
		Amount:      m.Amount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
	if m.SaleID != nil {
		id := m.SaleID.String()
		resp.SaleID = &id
	}
	return resp
}

func (s *shiftService) RequireOpen(ctx context.Context, shiftID uuid.UUID) (*model.RegisterShift, error) {
	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.NotFound("shift")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.ErrNoOpenShift
	}
	return shift, nil
}

func shiftToResponse(s *model.RegisterShift) *dto.ShiftResponse {
	resp := &dto.ShiftResponse{
		ID:             s.ID.String(),
		OperatorID:     s.OperatorID.String(),
		InitialBalance: s.InitialBalance,
		FinalBalance:   s.FinalBalance,
		Status:         s.Status,
		OpenedAt:       s.OpenedAt.Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}
