package service

import (
	"context"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"
	"github.com/leonardodevbr/siscondi-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory ShiftRepository ─────────────────────────────────────────────────

type stubShiftRepo struct {
	shifts    map[uuid.UUID]*model.RegisterShift
	movements []model.CashMovement
	createErr error
}

func newStubShiftRepo() *stubShiftRepo {
	return &stubShiftRepo{shifts: make(map[uuid.UUID]*model.RegisterShift)}
}

func (r *stubShiftRepo) Create(_ context.Context, _ *gorm.DB, s *model.RegisterShift) error {
	if r.createErr != nil {
		return r.createErr
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.shifts[s.ID] = s
	return nil
}

func (r *stubShiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RegisterShift, error) {
	s, ok := r.shifts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *stubShiftRepo) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.RegisterShift, error) {
	return r.FindByID(ctx, id)
}

func (r *stubShiftRepo) FindOpenByOperator(_ context.Context, _ *gorm.DB, operatorID uuid.UUID) (*model.RegisterShift, error) {
	for _, s := range r.shifts {
		if s.OperatorID == operatorID && s.Status == model.ShiftOpen {
			return s, nil
		}
	}
	return nil, nil
}

func (r *stubShiftRepo) Update(_ context.Context, _ *gorm.DB, s *model.RegisterShift) error {
	r.shifts[s.ID] = s
	return nil
}

func (r *stubShiftRepo) CreateMovement(_ context.Context, _ *gorm.DB, m *model.CashMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubShiftRepo) ListMovements(_ context.Context, shiftID uuid.UUID) ([]model.CashMovement, error) {
	var out []model.CashMovement
	for _, m := range r.movements {
		if m.ShiftID == shiftID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubShiftRepo) SumMovements(_ context.Context, _ *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range r.movements {
		if m.ShiftID == shiftID && m.Type != model.MovementClosingBalance {
			sum = sum.Add(m.Amount)
		}
	}
	return sum, nil
}

func (r *stubShiftRepo) DB() *gorm.DB { return nil }

// ledgerEntries filters the recorded movements by type.
func (r *stubShiftRepo) ledgerEntries(shiftID uuid.UUID, movType string) []model.CashMovement {
	var out []model.CashMovement
	for _, m := range r.movements {
		if m.ShiftID == shiftID && m.Type == movType {
			out = append(out, m)
		}
	}
	return out
}

var _ repository.ShiftRepository = (*stubShiftRepo)(nil)

// ── In-memory SaleRepository ──────────────────────────────────────────────────
// Lines and payments live in side maps so that FindByID composes fresh slices,
// mirroring how the real repository preloads associations.

type stubSaleRepo struct {
	sales    map[uuid.UUID]model.Sale
	lines    map[uuid.UUID][]model.SaleLine
	payments map[uuid.UUID][]model.SalePayment
}

func newStubSaleRepo() *stubSaleRepo {
	return &stubSaleRepo{
		sales:    make(map[uuid.UUID]model.Sale),
		lines:    make(map[uuid.UUID][]model.SaleLine),
		payments: make(map[uuid.UUID][]model.SalePayment),
	}
}

func (r *stubSaleRepo) Create(_ context.Context, s *model.Sale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	r.storeScalar(s)
	return nil
}

func (r *stubSaleRepo) storeScalar(s *model.Sale) {
	copied := *s
	copied.Lines = nil
	copied.Payments = nil
	r.sales[s.ID] = copied
}

func (r *stubSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s.Lines = append([]model.SaleLine(nil), r.lines[id]...)
	s.Payments = append([]model.SalePayment(nil), r.payments[id]...)
	return &s, nil
}

func (r *stubSaleRepo) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	return r.FindByID(ctx, id)
}

func (r *stubSaleRepo) FindOpenByOperatorShift(_ context.Context, operatorID, shiftID uuid.UUID) (*model.Sale, error) {
	for _, s := range r.sales {
		if s.OperatorID == operatorID && s.ShiftID == shiftID && s.Status == model.SaleOpen {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (r *stubSaleRepo) Update(_ context.Context, _ *gorm.DB, s *model.Sale) error {
	if _, ok := r.sales[s.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.storeScalar(s)
	return nil
}

func (r *stubSaleRepo) AddLine(_ context.Context, l *model.SaleLine) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.lines[l.SaleID] = append(r.lines[l.SaleID], *l)
	return nil
}

func (r *stubSaleRepo) UpdateLine(_ context.Context, l *model.SaleLine) error {
	for saleID, lines := range r.lines {
		for i := range lines {
			if lines[i].ID == l.ID {
				r.lines[saleID][i] = *l
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubSaleRepo) DeleteLine(_ context.Context, lineID uuid.UUID) error {
	for saleID, lines := range r.lines {
		for i := range lines {
			if lines[i].ID == lineID {
				r.lines[saleID] = append(lines[:i], lines[i+1:]...)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubSaleRepo) AddPayment(_ context.Context, _ *gorm.DB, p *model.SalePayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.payments[p.SaleID] = append(r.payments[p.SaleID], *p)
	return nil
}

func (r *stubSaleRepo) UpdatePayment(_ context.Context, _ *gorm.DB, p *model.SalePayment) error {
	for saleID, payments := range r.payments {
		for i := range payments {
			if payments[i].ID == p.ID {
				r.payments[saleID][i] = *p
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

// ── In-memory InventoryRepository ─────────────────────────────────────────────

type invKey struct{ branch, variant uuid.UUID }

type stubInventoryRepo struct {
	quantities map[invKey]int
	movements  []model.StockMovement
}

func newStubInventoryRepo() *stubInventoryRepo {
	return &stubInventoryRepo{quantities: make(map[invKey]int)}
}

func (r *stubInventoryRepo) set(branchID, variantID uuid.UUID, qty int) {
	r.quantities[invKey{branchID, variantID}] = qty
}

func (r *stubInventoryRepo) FindQuantity(_ context.Context, branchID, variantID uuid.UUID) (int, error) {
	qty, ok := r.quantities[invKey{branchID, variantID}]
	if !ok {
		return 0, apierror.NotFound("inventory record")
	}
	return qty, nil
}

func (r *stubInventoryRepo) DecrementTx(_ context.Context, _ *gorm.DB, branchID, variantID uuid.UUID, qty int) (int, int, error) {
	key := invKey{branchID, variantID}
	current, ok := r.quantities[key]
	if !ok {
		return 0, 0, apierror.NotFound("inventory record")
	}
	if current < qty {
		return current, current, &apierror.InsufficientStockError{Available: current, Requested: qty}
	}
	r.quantities[key] = current - qty
	return current, current - qty, nil
}

func (r *stubInventoryRepo) CreateMovementTx(_ context.Context, _ *gorm.DB, m *model.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubInventoryRepo) SaleMovementsExist(_ context.Context, _ *gorm.DB, saleID uuid.UUID) (bool, error) {
	for _, m := range r.movements {
		if m.SaleID != nil && *m.SaleID == saleID && m.Type == model.StockMovementSale {
			return true, nil
		}
	}
	return false, nil
}

var _ repository.InventoryRepository = (*stubInventoryRepo)(nil)

// ── In-memory CatalogRepository ───────────────────────────────────────────────

type stubCatalogRepo struct {
	variants map[uuid.UUID]model.Variant
	coupons  map[uuid.UUID]*model.Coupon
}

func newStubCatalogRepo() *stubCatalogRepo {
	return &stubCatalogRepo{
		variants: make(map[uuid.UUID]model.Variant),
		coupons:  make(map[uuid.UUID]*model.Coupon),
	}
}

func (r *stubCatalogRepo) addVariant(name string, price decimal.Decimal) uuid.UUID {
	id := uuid.New()
	r.variants[id] = model.Variant{ID: id, Name: name, UnitPrice: price, Active: true}
	return id
}

func (r *stubCatalogRepo) addCoupon(code string) uuid.UUID {
	id := uuid.New()
	r.coupons[id] = &model.Coupon{ID: id, Code: code}
	return id
}

func (r *stubCatalogRepo) FindVariant(_ context.Context, id uuid.UUID) (*model.Variant, error) {
	v, ok := r.variants[id]
	if !ok {
		return nil, apierror.NotFound("variant")
	}
	return &v, nil
}

func (r *stubCatalogRepo) FindCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	for _, c := range r.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, apierror.NotFound("coupon")
}

func (r *stubCatalogRepo) IncrementCouponUsageTx(_ context.Context, _ *gorm.DB, couponID uuid.UUID) error {
	c, ok := r.coupons[couponID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.UsageCount++
	return nil
}

var _ repository.CatalogRepository = (*stubCatalogRepo)(nil)

// ── In-memory ChargeRepository ────────────────────────────────────────────────

type stubChargeRepo struct {
	charges map[string]*model.PendingCharge
}

func newStubChargeRepo() *stubChargeRepo {
	return &stubChargeRepo{charges: make(map[string]*model.PendingCharge)}
}

func (r *stubChargeRepo) Create(_ context.Context, c *model.PendingCharge) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	r.charges[c.ExternalTransactionID] = c
	return nil
}

func (r *stubChargeRepo) FindByExternalID(_ context.Context, externalID string) (*model.PendingCharge, error) {
	return r.charges[externalID], nil
}

func (r *stubChargeRepo) FindByExternalIDForUpdate(ctx context.Context, _ *gorm.DB, externalID string) (*model.PendingCharge, error) {
	return r.FindByExternalID(ctx, externalID)
}

func (r *stubChargeRepo) FindPendingBySale(_ context.Context, saleID uuid.UUID) (*model.PendingCharge, error) {
	for _, c := range r.charges {
		if c.SaleID == saleID && c.Status == model.ChargePending {
			return c, nil
		}
	}
	return nil, nil
}

func (r *stubChargeRepo) Update(_ context.Context, _ *gorm.DB, c *model.PendingCharge) error {
	r.charges[c.ExternalTransactionID] = c
	return nil
}

func (r *stubChargeRepo) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]model.PendingCharge, error) {
	var out []model.PendingCharge
	for _, c := range r.charges {
		if c.Status == model.ChargePending && c.CreatedAt.Before(cutoff) {
			out = append(out, *c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ repository.ChargeRepository = (*stubChargeRepo)(nil)

// ── Test environment ──────────────────────────────────────────────────────────
// Wires the full service graph over the in-memory repositories, the way the
// router does over the real ones.

type testEnv struct {
	shiftRepo *stubShiftRepo
	saleRepo  *stubSaleRepo
	inventory *stubInventoryRepo
	catalog   *stubCatalogRepo
	charges   *stubChargeRepo

	shifts    ShiftService
	sales     SaleService
	reconcile ReconcileService
}

func testGatewayConfig() *config.Config {
	return &config.Config{
		Gateway:            "dev",
		DevWebhookSecret:   "test-secret",
		InstallmentMax:     12,
		InterestFreeMax:    3,
		InstallmentRatePct: 2.99,
	}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		shiftRepo: newStubShiftRepo(),
		saleRepo:  newStubSaleRepo(),
		inventory: newStubInventoryRepo(),
		catalog:   newStubCatalogRepo(),
		charges:   newStubChargeRepo(),
	}
	gateways := gateway.NewFactory(testGatewayConfig(), nil)
	env.shifts = NewShiftService(env.shiftRepo)
	env.sales = NewSaleService(env.saleRepo, env.shifts, env.shiftRepo, env.inventory, env.catalog, env.charges, gateways)
	env.reconcile = NewReconcileService(env.saleRepo, env.shiftRepo, env.inventory, env.catalog, env.charges)
	return env
}
