package repository

import (
	"context"
	"errors"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChargeRepository interface {
	Create(ctx context.Context, c *model.PendingCharge) error
	FindByExternalID(ctx context.Context, externalID string) (*model.PendingCharge, error)
	// FindByExternalIDForUpdate locks the charge row for webhook application.
	FindByExternalIDForUpdate(ctx context.Context, tx *gorm.DB, externalID string) (*model.PendingCharge, error)
	FindPendingBySale(ctx context.Context, saleID uuid.UUID) (*model.PendingCharge, error)
	Update(ctx context.Context, tx *gorm.DB, c *model.PendingCharge) error
	// ListExpired returns PENDING charges created before the cutoff.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.PendingCharge, error)
}

type chargeRepo struct{ db *gorm.DB }

func NewChargeRepository(db *gorm.DB) ChargeRepository { return &chargeRepo{db: db} }

func (r *chargeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *chargeRepo) Create(ctx context.Context, c *model.PendingCharge) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *chargeRepo) FindByExternalID(ctx context.Context, externalID string) (*model.PendingCharge, error) {
	var c model.PendingCharge
	err := r.db.WithContext(ctx).
		Where("external_transaction_id = ?", externalID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chargeRepo) FindByExternalIDForUpdate(ctx context.Context, tx *gorm.DB, externalID string) (*model.PendingCharge, error) {
	var c model.PendingCharge
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_transaction_id = ?", externalID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chargeRepo) FindPendingBySale(ctx context.Context, saleID uuid.UUID) (*model.PendingCharge, error) {
	var c model.PendingCharge
	err := r.db.WithContext(ctx).
		Where("sale_id = ? AND status = ?", saleID, model.ChargePending).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chargeRepo) Update(ctx context.Context, tx *gorm.DB, c *model.PendingCharge) error {
	return r.conn(tx).WithContext(ctx).Save(c).Error
}

func (r *chargeRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.PendingCharge, error) {
	var charges []model.PendingCharge
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.ChargePending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&charges).Error
	return charges, err
}
