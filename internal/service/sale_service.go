package service

import (
	"context"
	"fmt"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"
	"github.com/leonardodevbr/siscondi-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleService interface {
	Start(ctx context.Context, operatorID uuid.UUID, req dto.StartSaleRequest) (*dto.SaleResponse, error)
	Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
	AddLine(ctx context.Context, saleID uuid.UUID, req dto.AddLineRequest) (*dto.SaleResponse, error)
	RemoveLine(ctx context.Context, saleID, lineID uuid.UUID) (*dto.SaleResponse, error)
	ApplyDiscount(ctx context.Context, saleID uuid.UUID, req dto.DiscountRequest) (*dto.SaleResponse, error)
	AddPayment(ctx context.Context, saleID uuid.UUID, req dto.AddPaymentRequest) (*dto.SaleResponse, error)
	Finish(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
	Cancel(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
	// GeneratePix creates a gateway PIX charge for a sale waiting on one.
	// The provider is resolved by the caller at request scope.
	GeneratePix(ctx context.Context, saleID uuid.UUID, gw gateway.PaymentGateway, ttl time.Duration) (*dto.PixChargeResponse, error)
}

type saleService struct {
	repo      repository.SaleRepository
	shifts    ShiftService
	shiftRepo repository.ShiftRepository
	inventory repository.InventoryRepository
	catalog   repository.CatalogRepository
	charges   repository.ChargeRepository
	gateways  *gateway.Factory
}

func NewSaleService(
	repo repository.SaleRepository,
	shifts ShiftService,
	shiftRepo repository.ShiftRepository,
	inventory repository.InventoryRepository,
	catalog repository.CatalogRepository,
	charges repository.ChargeRepository,
	gateways *gateway.Factory,
) SaleService {
	return &saleService{
		repo:      repo,
		shifts:    shifts,
		shiftRepo: shiftRepo,
		inventory: inventory,
		catalog:   catalog,
		charges:   charges,
		gateways:  gateways,
	}
}

// ── Start ─────────────────────────────────────────────────────────────────────

func (s *saleService) Start(ctx context.Context, operatorID uuid.UUID, req dto.StartSaleRequest) (*dto.SaleResponse, error) {
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("invalid shift_id: %w", err)
	}
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch_id: %w", err)
	}

	if _, err := s.shifts.RequireOpen(ctx, shiftID); err != nil {
		return nil, err
	}

	// At most one concurrent sale per operator-shift.
	existing, err := s.repo.FindOpenByOperatorShift(ctx, operatorID, shiftID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.ErrSaleAlreadyOpen
	}

	sale := model.Sale{
		OperatorID:     operatorID,
		BranchID:       branchID,
		ShiftID:        shiftID,
		Status:         model.SaleOpen,
		TotalAmount:    decimal.Zero,
		DiscountAmount: decimal.Zero,
		FinalAmount:    decimal.Zero,
	}

	if req.CustomerID != nil {
		cid, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("invalid customer_id: %w", err)
		}
		sale.CustomerID = &cid
	}
	if req.CouponCode != nil && *req.CouponCode != "" {
		coupon, err := s.catalog.FindCouponByCode(ctx, *req.CouponCode)
		if err != nil {
			return nil, err
		}
		sale.CouponID = &coupon.ID
	}

	if err := s.repo.Create(ctx, &sale); err != nil {
		return nil, err
	}
	return saleToResponse(&sale), nil
}

func (s *saleService) Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale")
	}
	return saleToResponse(sale), nil
}

// ── AddLine ───────────────────────────────────────────────────────────────────
// Availability is checked here without locking; finish() re-checks under a row
// lock because concurrent sales may consume the stock in between.

func (s *saleService) AddLine(ctx context.Context, saleID uuid.UUID, req dto.AddLineRequest) (*dto.SaleResponse, error) {
	sale, err := s.requireOpenSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return nil, fmt.Errorf("invalid variant_id: %w", err)
	}

	variant, err := s.catalog.FindVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	onHand, err := s.inventory.FindQuantity(ctx, sale.BranchID, variantID)
	if err != nil {
		return nil, err
	}

	// Merge with an existing line for the same variant: quantity accumulates,
	// the line total is recomputed from the originally captured unit price.
	var existing *model.SaleLine
	for i := range sale.Lines {
		if sale.Lines[i].VariantID == variantID {
			existing = &sale.Lines[i]
			break
		}
	}

	requested := req.Quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if requested > onHand {
		return nil, &apierror.InsufficientStockError{Available: onHand, Requested: requested}
	}

	if existing != nil {
		existing.Quantity = requested
		existing.LineTotal = existing.UnitPrice.Mul(decimal.NewFromInt(int64(requested)))
		if err := s.repo.UpdateLine(ctx, existing); err != nil {
			return nil, err
		}
	} else {
		line := model.SaleLine{
			SaleID:    sale.ID,
			VariantID: variantID,
			Quantity:  req.Quantity,
			UnitPrice: variant.UnitPrice,
			LineTotal: variant.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		}
		if err := s.repo.AddLine(ctx, &line); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}

	if err := s.recalculate(ctx, sale); err != nil {
		return nil, err
	}
	return saleToResponse(sale), nil
}

func (s *saleService) RemoveLine(ctx context.Context, saleID, lineID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.requireOpenSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range sale.Lines {
		if sale.Lines[i].ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apierror.NotFound("sale line")
	}

	if err := s.repo.DeleteLine(ctx, lineID); err != nil {
		return nil, err
	}
	sale.Lines = append(sale.Lines[:idx], sale.Lines[idx+1:]...)

	if err := s.recalculate(ctx, sale); err != nil {
		return nil, err
	}
	return saleToResponse(sale), nil
}

// ── ApplyDiscount ─────────────────────────────────────────────────────────────

func (s *saleService) ApplyDiscount(ctx context.Context, saleID uuid.UUID, req dto.DiscountRequest) (*dto.SaleResponse, error) {
	sale, err := s.requireOpenSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	var discount decimal.Decimal
	switch req.Type {
	case model.DiscountPercentage:
		discount = sale.TotalAmount.Mul(req.Value).Div(decimal.NewFromInt(100)).Round(2)
	case model.DiscountFixed:
		discount = decimal.Min(req.Value, sale.TotalAmount)
	}

	sale.DiscountAmount = discount
	if err := s.recalculate(ctx, sale); err != nil {
		return nil, err
	}
	return saleToResponse(sale), nil
}

// ── AddPayment ────────────────────────────────────────────────────────────────
// Synchronous methods (cash, cards) are eligible immediately. PIX payments are
// recorded PENDING and only count once the gateway confirms the charge.

func (s *saleService) AddPayment(ctx context.Context, saleID uuid.UUID, req dto.AddPaymentRequest) (*dto.SaleResponse, error) {
	sale, err := s.requireOpenSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, &apierror.InvalidStateError{Entity: "payment", Status: "non-positive amount"}
	}

	installments := req.Installments
	if installments < 1 {
		installments = 1
	}
	if req.Method == model.PaymentCreditCard {
		// The provider's plan bounds the installment count.
		gw, err := s.gateways.Default()
		if err != nil {
			return nil, err
		}
		if plan := gw.CalculateInstallments(sale.FinalAmount); installments > len(plan) {
			return nil, apierror.NewValidation(map[string]string{
				"installments": fmt.Sprintf("at most %d installments", len(plan)),
			})
		}
	} else {
		// Cash, debit and PIX settle in a single installment.
		installments = 1
	}

	payment := model.SalePayment{
		SaleID:       sale.ID,
		Method:       req.Method,
		Amount:       req.Amount,
		Installments: installments,
	}
	if req.Method == model.PaymentPix {
		pending := model.PaymentPending
		payment.Status = &pending
	}

	if err := s.repo.AddPayment(ctx, nil, &payment); err != nil {
		return nil, err
	}
	sale.Payments = append(sale.Payments, payment)
	return saleToResponse(sale), nil
}

// ── Finish ────────────────────────────────────────────────────────────────────
// Fully paid with confirmed amounts: one ACID transaction that locks and
// decrements every inventory record, appends the SALE ledger entry, bumps the
// coupon and completes the sale. An outstanding PIX payment instead moves the
// sale to PENDING_PAYMENT with zero side effects — the webhook finishes the job.

func (s *saleService) Finish(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale")
	}
	if sale.Status != model.SaleOpen {
		return nil, &apierror.InvalidStateError{Entity: "sale", Status: sale.Status}
	}

	confirmed, pending := paymentTotals(sale.Payments)

	if confirmed.GreaterThanOrEqual(sale.FinalAmount) {
		txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			// Re-read under lock: a racing finish or reconciliation must not
			// double-commit.
			locked := sale
			if tx != nil {
				locked, err = s.repo.FindByIDForUpdate(ctx, tx, saleID)
				if err != nil {
					return err
				}
				if locked.Status != model.SaleOpen {
					return &apierror.InvalidStateError{Entity: "sale", Status: locked.Status}
				}
			}
			if err := completeSaleTx(ctx, tx, locked, s.repo, s.shiftRepo, s.inventory, s.catalog); err != nil {
				return err
			}
			sale = locked
			return nil
		})
		if txErr != nil {
			return nil, txErr
		}
		return saleToResponse(sale), nil
	}

	if confirmed.Add(pending).GreaterThanOrEqual(sale.FinalAmount) {
		sale.Status = model.SalePendingPayment
		if err := s.repo.Update(ctx, nil, sale); err != nil {
			return nil, err
		}
		return saleToResponse(sale), nil
	}

	missing := sale.FinalAmount.Sub(confirmed.Add(pending))
	return nil, &apierror.InsufficientPaymentError{Missing: missing}
}

// ── Cancel ────────────────────────────────────────────────────────────────────
// OPEN and PENDING_PAYMENT sales cancel; neither has committed inventory or
// ledger side effects, so there is nothing to undo. A sale waiting on a PIX
// charge drops the charge at the provider first.

func (s *saleService) Cancel(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale")
	}
	if sale.Status != model.SaleOpen && sale.Status != model.SalePendingPayment {
		return nil, &apierror.InvalidStateError{Entity: "sale", Status: sale.Status}
	}

	if sale.Status == model.SalePendingPayment {
		if err := s.cancelLiveCharge(ctx, sale.ID); err != nil {
			return nil, err
		}
	}

	sale.Status = model.SaleCanceled
	if err := s.repo.Update(ctx, nil, sale); err != nil {
		return nil, err
	}
	return saleToResponse(sale), nil
}

// cancelLiveCharge settles the sale's PENDING charge, if any: asks the
// provider to drop it (best-effort, a provider failure does not block the
// operator) and marks it CANCELED so a late webhook becomes a no-op.
func (s *saleService) cancelLiveCharge(ctx context.Context, saleID uuid.UUID) error {
	charge, err := s.charges.FindPendingBySale(ctx, saleID)
	if err != nil || charge == nil {
		return err
	}
	if gw, err := s.gateways.Select(charge.Gateway); err == nil {
		gw.CancelCharge(ctx, charge.ExternalTransactionID)
	}
	charge.Status = model.ChargeCanceled
	return s.charges.Update(ctx, nil, charge)
}

// ── GeneratePix ───────────────────────────────────────────────────────────────

func (s *saleService) GeneratePix(ctx context.Context, saleID uuid.UUID, gw gateway.PaymentGateway, ttl time.Duration) (*dto.PixChargeResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale")
	}
	if sale.Status != model.SalePendingPayment {
		return nil, &apierror.InvalidStateError{Entity: "sale", Status: sale.Status}
	}

	// A FAILED payment is retryable: generating a fresh charge re-pends it.
	var payment *model.SalePayment
	for i := range sale.Payments {
		p := &sale.Payments[i]
		if p.Method == model.PaymentPix && p.Status != nil &&
			(*p.Status == model.PaymentPending || *p.Status == model.PaymentFailed) {
			payment = p
			break
		}
	}
	if payment == nil {
		return nil, apierror.NotFound("outstanding pix payment")
	}

	// At most one live charge per sale: a previous charge still PENDING is
	// superseded, not stacked.
	if err := s.cancelLiveCharge(ctx, sale.ID); err != nil {
		return nil, err
	}

	pix, err := gw.GeneratePixCharge(ctx, sale.ID, payment.Amount)
	if err != nil {
		return nil, err
	}

	charge := model.PendingCharge{
		ExternalTransactionID: pix.ExternalTransactionID,
		SaleID:                sale.ID,
		SalePaymentID:         payment.ID,
		Gateway:               gw.Name(),
		Amount:                payment.Amount,
		Status:                model.ChargePending,
	}
	if err := s.charges.Create(ctx, &charge); err != nil {
		return nil, err
	}

	pending := model.PaymentPending
	payment.Status = &pending
	payment.ExternalTransactionID = &pix.ExternalTransactionID
	if err := s.repo.UpdatePayment(ctx, nil, payment); err != nil {
		return nil, err
	}

	return &dto.PixChargeResponse{
		ExternalTransactionID: pix.ExternalTransactionID,
		Payload:               pix.Payload,
		QRImage:               pix.QRImage,
		ExpiresAt:             time.Now().Add(ttl).Format(time.RFC3339),
	}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *saleService) requireOpenSale(ctx context.Context, saleID uuid.UUID) (*model.Sale, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale")
	}
	if sale.Status != model.SaleOpen {
		return nil, &apierror.InvalidStateError{Entity: "sale", Status: sale.Status}
	}
	return sale, nil
}

// recalculate rebuilds the sale totals from its lines and stored discount.
// Total is the exact sum of line totals; final is floored at zero.
func (s *saleService) recalculate(ctx context.Context, sale *model.Sale) error {
	total := decimal.Zero
	for _, l := range sale.Lines {
		total = total.Add(l.LineTotal)
	}
	sale.TotalAmount = total
	if sale.DiscountAmount.GreaterThan(total) {
		sale.DiscountAmount = total
	}
	sale.FinalAmount = total.Sub(sale.DiscountAmount)
	if sale.FinalAmount.IsNegative() {
		sale.FinalAmount = decimal.Zero
	}
	return s.repo.Update(ctx, nil, sale)
}

// paymentTotals splits the payment sum into confirmed and pending-async parts.
func paymentTotals(payments []model.SalePayment) (confirmed, pending decimal.Decimal) {
	confirmed, pending = decimal.Zero, decimal.Zero
	for _, p := range payments {
		switch {
		case p.Confirmed():
			confirmed = confirmed.Add(p.Amount)
		case *p.Status == model.PaymentPending:
			pending = pending.Add(p.Amount)
		}
	}
	return confirmed, pending
}

// completeSaleTx commits a fully paid sale: per line, lock + re-check +
// decrement inventory and record the stock movement; append the SALE ledger
// entry to the originating shift; bump coupon usage; mark COMPLETED.
// Any error rolls back the whole transaction — no partial decrements survive.
func completeSaleTx(
	ctx context.Context,
	tx *gorm.DB,
	sale *model.Sale,
	saleRepo repository.SaleRepository,
	shiftRepo repository.ShiftRepository,
	inventory repository.InventoryRepository,
	catalog repository.CatalogRepository,
) error {
	for _, line := range sale.Lines {
		before, after, err := inventory.DecrementTx(ctx, tx, sale.BranchID, line.VariantID, line.Quantity)
		if err != nil {
			return err
		}

		saleRef := sale.ID
		mov := model.StockMovement{
			BranchID:       sale.BranchID,
			VariantID:      line.VariantID,
			Type:           model.StockMovementSale,
			Quantity:       -line.Quantity,
			QuantityBefore: before,
			QuantityAfter:  after,
			SaleID:         &saleRef,
			Reason:         fmt.Sprintf("sale %s", sale.ID),
		}
		if err := inventory.CreateMovementTx(ctx, tx, &mov); err != nil {
			return err
		}
	}

	saleRef := sale.ID
	entry := model.CashMovement{
		ShiftID:     sale.ShiftID,
		Type:        model.MovementSale,
		Amount:      sale.FinalAmount,
		Description: fmt.Sprintf("sale %s", sale.ID),
		SaleID:      &saleRef,
	}
	if err := shiftRepo.CreateMovement(ctx, tx, &entry); err != nil {
		return err
	}

	if sale.CouponID != nil {
		if err := catalog.IncrementCouponUsageTx(ctx, tx, *sale.CouponID); err != nil {
			return err
		}
	}

	sale.Status = model.SaleCompleted
	return saleRepo.Update(ctx, tx, sale)
}

func saleToResponse(s *model.Sale) *dto.SaleResponse {
	lines := make([]dto.SaleLineResponse, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, dto.SaleLineResponse{
			ID:        l.ID.String(),
			VariantID: l.VariantID.String(),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	payments := make([]dto.SalePaymentResponse, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, dto.SalePaymentResponse{
			ID:                    p.ID.String(),
			Method:                p.Method,
			Amount:                p.Amount,
			Installments:          p.Installments,
			ExternalTransactionID: p.ExternalTransactionID,
			Status:                p.Status,
		})
	}
	return &dto.SaleResponse{
		ID:             s.ID.String(),
		ShiftID:        s.ShiftID.String(),
		BranchID:       s.BranchID.String(),
		Status:         s.Status,
		TotalAmount:    s.TotalAmount,
		DiscountAmount: s.DiscountAmount,
		FinalAmount:    s.FinalAmount,
		Lines:          lines,
		Payments:       payments,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
	}
}
