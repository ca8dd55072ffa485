package repository

import (
	"context"
	"errors"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository is the narrow catalog-collaborator interface: price
// lookups and coupon usage increments. Catalog CRUD is out of scope and owned
// by another service.
type CatalogRepository interface {
	FindVariant(ctx context.Context, id uuid.UUID) (*model.Variant, error)
	FindCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	// IncrementCouponUsageTx bumps usage inside the finish/reconcile tx so a
	// rollback also undoes the increment.
	IncrementCouponUsageTx(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *catalogRepo) FindVariant(ctx context.Context, id uuid.UUID) (*model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NotFound("variant")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *catalogRepo) FindCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).First(&c, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NotFound("coupon")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *catalogRepo) IncrementCouponUsageTx(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ?", couponID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}
