package service

import (
	"context"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"
	"github.com/leonardodevbr/siscondi-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReconcileService applies asynchronous gateway notifications to sales.
// Apply is idempotent: a webhook replayed N times produces exactly one
// state change.
type ReconcileService interface {
	Apply(ctx context.Context, gw gateway.PaymentGateway, raw []byte) (*dto.WebhookAck, error)
	// ExpireCharges marks PENDING charges older than ttl as EXPIRED and
	// returns them so the caller can enqueue best-effort gateway cancels.
	ExpireCharges(ctx context.Context, ttl time.Duration, limit int) ([]model.PendingCharge, error)
}

type reconcileService struct {
	sales     repository.SaleRepository
	shiftRepo repository.ShiftRepository
	inventory repository.InventoryRepository
	catalog   repository.CatalogRepository
	charges   repository.ChargeRepository
}

func NewReconcileService(
	sales repository.SaleRepository,
	shiftRepo repository.ShiftRepository,
	inventory repository.InventoryRepository,
	catalog repository.CatalogRepository,
	charges repository.ChargeRepository,
) ReconcileService {
	return &reconcileService{
		sales:     sales,
		shiftRepo: shiftRepo,
		inventory: inventory,
		catalog:   catalog,
		charges:   charges,
	}
}

func (s *reconcileService) Apply(ctx context.Context, gw gateway.PaymentGateway, raw []byte) (*dto.WebhookAck, error) {
	evt, err := gw.ParseWebhook(raw)
	if err != nil {
		// Bad signature or corrupt body: acknowledge so the gateway stops
		// retrying, but apply nothing.
		log.Warn().Str("gateway", gw.Name()).Err(err).Msg("webhook rejected")
		return &dto.WebhookAck{Received: true, Note: "rejected"}, nil
	}
	if evt == nil {
		return &dto.WebhookAck{Received: true, Note: "ignored"}, nil
	}

	charge, err := s.charges.FindByExternalID(ctx, evt.ExternalTransactionID)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, apierror.NotFound("pending charge")
	}

	if evt.Outcome == gateway.OutcomePending {
		return &dto.WebhookAck{Received: true, Note: "still pending"}, nil
	}

	applied := false
	txErr := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		locked := charge
		if tx != nil {
			locked, err = s.charges.FindByExternalIDForUpdate(ctx, tx, evt.ExternalTransactionID)
			if err != nil {
				return err
			}
			if locked == nil {
				return apierror.NotFound("pending charge")
			}
		}

		// Replay of an already settled charge is a no-op.
		if locked.Status != model.ChargePending {
			return nil
		}

		sale, err := s.sales.FindByIDForUpdate(ctx, tx, locked.SaleID)
		if err != nil {
			return err
		}

		switch evt.Outcome {
		case gateway.OutcomeApproved:
			if err := s.applyApproval(ctx, tx, locked, sale); err != nil {
				return err
			}
		case gateway.OutcomeRejected:
			if err := s.applyRejection(ctx, tx, locked, sale); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if applied {
		log.Info().Str("gateway", gw.Name()).
			Str("transaction_id", evt.ExternalTransactionID).
			Str("outcome", evt.Outcome).
			Msg("webhook applied")
	}
	return &dto.WebhookAck{Received: true, Applied: applied}, nil
}

// applyApproval marks the charge and payment PAID and, once every payment on
// the sale is confirmed, commits the sale exactly as a synchronous finish
// would. The stock-movement existence check guards against a racing finish
// that already decremented.
func (s *reconcileService) applyApproval(ctx context.Context, tx *gorm.DB, charge *model.PendingCharge, sale *model.Sale) error {
	charge.Status = model.ChargePaid
	if err := s.charges.Update(ctx, tx, charge); err != nil {
		return err
	}

	payment := findPayment(sale, charge.SalePaymentID)
	if payment == nil {
		return apierror.NotFound("sale payment")
	}
	paid := model.PaymentPaid
	payment.Status = &paid
	payment.ExternalTransactionID = &charge.ExternalTransactionID
	if err := s.sales.UpdatePayment(ctx, tx, payment); err != nil {
		return err
	}

	if sale.Status != model.SalePendingPayment {
		return nil
	}
	confirmed, _ := paymentTotals(sale.Payments)
	if confirmed.LessThan(sale.FinalAmount) {
		return nil
	}

	decremented, err := s.inventory.SaleMovementsExist(ctx, tx, sale.ID)
	if err != nil {
		return err
	}
	if decremented {
		sale.Status = model.SaleCompleted
		return s.sales.Update(ctx, tx, sale)
	}
	return completeSaleTx(ctx, tx, sale, s.sales, s.shiftRepo, s.inventory, s.catalog)
}

// applyRejection fails the payment; the sale stays PENDING_PAYMENT so the
// operator can retry with another method or cancel at the register.
func (s *reconcileService) applyRejection(ctx context.Context, tx *gorm.DB, charge *model.PendingCharge, sale *model.Sale) error {
	charge.Status = model.ChargeCanceled
	if err := s.charges.Update(ctx, tx, charge); err != nil {
		return err
	}

	payment := findPayment(sale, charge.SalePaymentID)
	if payment == nil {
		return apierror.NotFound("sale payment")
	}
	failed := model.PaymentFailed
	payment.Status = &failed
	return s.sales.UpdatePayment(ctx, tx, payment)
}

func (s *reconcileService) ExpireCharges(ctx context.Context, ttl time.Duration, limit int) ([]model.PendingCharge, error) {
	cutoff := time.Now().Add(-ttl)
	expired, err := s.charges.ListExpired(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.PendingCharge, 0, len(expired))
	for i := range expired {
		c := expired[i]
		c.Status = model.ChargeExpired
		if err := s.charges.Update(ctx, nil, &c); err != nil {
			log.Error().Str("transaction_id", c.ExternalTransactionID).Err(err).
				Msg("expire charge failed")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func findPayment(sale *model.Sale, id uuid.UUID) *model.SalePayment {
	for i := range sale.Payments {
		if sale.Payments[i].ID == id {
			return &sale.Payments[i]
		}
	}
	return nil
}
