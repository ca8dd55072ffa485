package gateway

import (
	"context"
	"encoding/json"

	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MercadoPago talks to the Mercado Pago payments API. PIX and card charges.
type MercadoPago struct {
	client          *providerClient
	maxInstallments int
	interestFree    int
	ratePct         decimal.Decimal
}

func NewMercadoPago(cfg *config.Config, cb *infra.CircuitBreaker) *MercadoPago {
	return &MercadoPago{
		client:          newProviderClient("mercadopago", cfg.MercadoPagoURL, cfg.MercadoPagoToken, cb),
		maxInstallments: cfg.InstallmentMax,
		interestFree:    cfg.InterestFreeMax,
		ratePct:         decimal.NewFromFloat(cfg.InstallmentRatePct),
	}
}

func (g *MercadoPago) Name() string { return "mercadopago" }

func (g *MercadoPago) CalculateInstallments(amount decimal.Decimal) []dto.InstallmentOption {
	return installmentPlan(amount, g.maxInstallments, g.interestFree, g.ratePct)
}

type mpChargeRequest struct {
	ExternalReference string `json:"external_reference"`
	TransactionAmount string `json:"transaction_amount"`
	PaymentMethodID   string `json:"payment_method_id"`
	Installments      int    `json:"installments"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

type mpChargeResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"` // approved | rejected | in_process
	StatusDetail       string      `json:"status_detail"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (g *MercadoPago) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := mpChargeRequest{
		ExternalReference: req.SaleID.String(),
		TransactionAmount: req.Amount.StringFixed(2),
		PaymentMethodID:   mpMethod(req.Method),
		Installments:      req.Installments,
	}
	body.Payer.Email = req.PayerContact

	var resp mpChargeResponse
	if err := g.client.postJSON(ctx, "/v1/payments", body, &resp); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(resp)
	result := &ChargeResult{
		ExternalTransactionID: resp.ID.String(),
		ProviderPayload:       payload,
	}
	if resp.Status == "rejected" {
		result.Declined = true
		result.DeclineReason = resp.StatusDetail
	}
	return result, nil
}

func (g *MercadoPago) GeneratePixCharge(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal) (*PixCharge, error) {
	body := mpChargeRequest{
		ExternalReference: saleID.String(),
		TransactionAmount: amount.StringFixed(2),
		PaymentMethodID:   "pix",
		Installments:      1,
	}
	var resp mpChargeResponse
	if err := g.client.postJSON(ctx, "/v1/payments", body, &resp); err != nil {
		return nil, err
	}
	return &PixCharge{
		ExternalTransactionID: resp.ID.String(),
		Payload:               resp.PointOfInteraction.TransactionData.QRCode,
		QRImage:               resp.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

// mpWebhook is the notification shape for payment events. Other event types
// (plans, invoices) are not ours and parse to nil.
type mpWebhook struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	} `json:"data"`
}

func (g *MercadoPago) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var wh mpWebhook
	if err := json.Unmarshal(raw, &wh); err != nil || wh.Type != "payment" || wh.Data.ID.String() == "" {
		return nil, nil
	}
	outcome := OutcomePending
	switch wh.Data.Status {
	case "approved":
		outcome = OutcomeApproved
	case "rejected", "cancelled":
		outcome = OutcomeRejected
	}
	return &WebhookEvent{
		ExternalTransactionID: wh.Data.ID.String(),
		Outcome:               outcome,
		Metadata:              map[string]string{"action": wh.Action, "status": wh.Data.Status},
	}, nil
}

func (g *MercadoPago) CancelCharge(ctx context.Context, externalID string) bool {
	err := g.client.postJSON(ctx, "/v1/payments/"+externalID+"/cancel", map[string]string{}, nil)
	if err != nil {
		log.Warn().Str("gateway", g.Name()).Str("transaction_id", externalID).Err(err).
			Msg("cancel charge failed")
		return false
	}
	return true
}

func mpMethod(method string) string {
	switch method {
	case "CREDIT_CARD":
		return "credit_card"
	case "DEBIT_CARD":
		return "debit_card"
	case "PIX":
		return "pix"
	default:
		return "account_money"
	}
}
