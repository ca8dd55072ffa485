package repository

import (
	"context"
	"errors"

	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleRepository interface {
	Create(ctx context.Context, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	// FindByIDForUpdate locks the sale row so that finish() and webhook
	// reconciliation racing on the same sale serialize.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	FindOpenByOperatorShift(ctx context.Context, operatorID, shiftID uuid.UUID) (*model.Sale, error)
	Update(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	AddLine(ctx context.Context, l *model.SaleLine) error
	UpdateLine(ctx context.Context, l *model.SaleLine) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	AddPayment(ctx context.Context, tx *gorm.DB, p *model.SalePayment) error
	UpdatePayment(ctx context.Context, tx *gorm.DB, p *model.SalePayment) error
	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *saleRepo) Create(ctx context.Context, s *model.Sale) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Payments").
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	// Associations loaded separately — FOR UPDATE cannot span the joins.
	if err := r.conn(tx).WithContext(ctx).Where("sale_id = ?", id).Find(&s.Lines).Error; err != nil {
		return nil, err
	}
	if err := r.conn(tx).WithContext(ctx).Where("sale_id = ?", id).Find(&s.Payments).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) FindOpenByOperatorShift(ctx context.Context, operatorID, shiftID uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND shift_id = ? AND status = ?", operatorID, shiftID, model.SaleOpen).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) Update(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	return r.conn(tx).WithContext(ctx).
		Omit("Lines", "Payments").
		Save(s).Error
}

func (r *saleRepo) AddLine(ctx context.Context, l *model.SaleLine) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *saleRepo) UpdateLine(ctx context.Context, l *model.SaleLine) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *saleRepo) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.SaleLine{}, "id = ?", lineID).Error
}

func (r *saleRepo) AddPayment(ctx context.Context, tx *gorm.DB, p *model.SalePayment) error {
	return r.conn(tx).WithContext(ctx).Create(p).Error
}

func (r *saleRepo) UpdatePayment(ctx context.Context, tx *gorm.DB, p *model.SalePayment) error {
	return r.conn(tx).WithContext(ctx).Save(p).Error
}
