package repository

import (
	"context"
	"errors"

	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ShiftRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *model.RegisterShift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RegisterShift, error)
	// FindByIDForUpdate locks the shift row; concurrent cash movements against
	// the same shift serialize on it.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.RegisterShift, error)
	FindOpenByOperator(ctx context.Context, tx *gorm.DB, operatorID uuid.UUID) (*model.RegisterShift, error)
	Update(ctx context.Context, tx *gorm.DB, s *model.RegisterShift) error
	CreateMovement(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error
	ListMovements(ctx context.Context, shiftID uuid.UUID) ([]model.CashMovement, error)
	// SumMovements totals every entry except CLOSING_BALANCE — the running
	// balance of the shift's ledger.
	SumMovements(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error)
	DB() *gorm.DB
}

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) DB() *gorm.DB { return r.db }

func (r *shiftRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *shiftRepo) Create(ctx context.Context, tx *gorm.DB, s *model.RegisterShift) error {
	return r.conn(tx).WithContext(ctx).Create(s).Error
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.RegisterShift, error) {
	var s model.RegisterShift
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.RegisterShift, error) {
	var s model.RegisterShift
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByOperator(ctx context.Context, tx *gorm.DB, operatorID uuid.UUID) (*model.RegisterShift, error) {
	var s model.RegisterShift
	err := r.conn(tx).WithContext(ctx).
		Where("operator_id = ? AND status = ?", operatorID, model.ShiftOpen).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) Update(ctx context.Context, tx *gorm.DB, s *model.RegisterShift) error {
	return r.conn(tx).WithContext(ctx).Save(s).Error
}

func (r *shiftRepo) CreateMovement(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error {
	return r.conn(tx).WithContext(ctx).Create(m).Error
}

func (r *shiftRepo) ListMovements(ctx context.Context, shiftID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := r.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *shiftRepo) SumMovements(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.conn(tx).WithContext(ctx).
		Model(&model.CashMovement{}).
		Select("SUM(amount)").
		Where("shift_id = ? AND type <> ?", shiftID, model.MovementClosingBalance).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
