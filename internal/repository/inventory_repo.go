package repository

import (
	"context"
	"errors"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	FindQuantity(ctx context.Context, branchID, variantID uuid.UUID) (int, error)
	// DecrementTx acquires a FOR UPDATE lock on the (branch, variant) record,
	// re-verifies availability and decrements. Returning an error rolls back
	// the whole enclosing transaction — no partial decrements survive.
	DecrementTx(ctx context.Context, tx *gorm.DB, branchID, variantID uuid.UUID, qty int) (before, after int, err error)
	CreateMovementTx(ctx context.Context, tx *gorm.DB, m *model.StockMovement) error
	// SaleMovementsExist is the reconciler's double-decrement guard.
	SaleMovementsExist(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) (bool, error)
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepository(db *gorm.DB) InventoryRepository { return &inventoryRepo{db: db} }

func (r *inventoryRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *inventoryRepo) FindQuantity(ctx context.Context, branchID, variantID uuid.UUID) (int, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND variant_id = ?", branchID, variantID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apierror.NotFound("inventory record")
	}
	if err != nil {
		return 0, err
	}
	return rec.Quantity, nil
}

func (r *inventoryRepo) DecrementTx(ctx context.Context, tx *gorm.DB, branchID, variantID uuid.UUID, qty int) (int, int, error) {
	var rec model.InventoryRecord
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND variant_id = ?", branchID, variantID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, apierror.NotFound("inventory record")
	}
	if err != nil {
		return 0, 0, err
	}

	// Second check under the lock — stock may have been consumed by a
	// concurrent sale between add-time and finish-time.
	if rec.Quantity < qty {
		return rec.Quantity, rec.Quantity, &apierror.InsufficientStockError{
			Available: rec.Quantity,
			Requested: qty,
		}
	}

	before := rec.Quantity
	rec.Quantity -= qty
	if err := r.conn(tx).WithContext(ctx).Save(&rec).Error; err != nil {
		return before, before, err
	}
	return before, rec.Quantity, nil
}

func (r *inventoryRepo) CreateMovementTx(ctx context.Context, tx *gorm.DB, m *model.StockMovement) error {
	return r.conn(tx).WithContext(ctx).Create(m).Error
}

func (r *inventoryRepo) SaleMovementsExist(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.StockMovement{}).
		Where("sale_id = ? AND type = ?", saleID, model.StockMovementSale).
		Count(&count).Error
	return count > 0, err
}
