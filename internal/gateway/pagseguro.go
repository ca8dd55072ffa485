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

// PagSeguro talks to the PagSeguro charges API. Works in integer minor units
// (centavos) on the wire, decimal elsewhere.
type PagSeguro struct {
	client          *providerClient
	maxInstallments int
	interestFree    int
	ratePct         decimal.Decimal
}

func NewPagSeguro(cfg *config.Config, cb *infra.CircuitBreaker) *PagSeguro {
	return &PagSeguro{
		client:          newProviderClient("pagseguro", cfg.PagSeguroURL, cfg.PagSeguroToken, cb),
		maxInstallments: cfg.InstallmentMax,
		interestFree:    cfg.InterestFreeMax,
		ratePct:         decimal.NewFromFloat(cfg.InstallmentRatePct),
	}
}

func (g *PagSeguro) Name() string { return "pagseguro" }

func (g *PagSeguro) CalculateInstallments(amount decimal.Decimal) []dto.InstallmentOption {
	return installmentPlan(amount, g.maxInstallments, g.interestFree, g.ratePct)
}

type psCharge struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"` // PAID | DECLINED | WAITING | CANCELED
	Amount      struct {
		Value int64 `json:"value"` // centavos
	} `json:"amount"`
	PaymentResponse struct {
		Message string `json:"message"`
	} `json:"payment_response"`
	QRCodes []struct {
		Text  string `json:"text"`
		Links []struct {
			Href  string `json:"href"`
			Media string `json:"media"`
		} `json:"links"`
	} `json:"qr_codes"`
}

func (g *PagSeguro) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := map[string]interface{}{
		"reference_id": req.SaleID.String(),
		"amount":       map[string]int64{"value": toCentavos(req.Amount)},
		"payment_method": map[string]interface{}{
			"type":         psMethod(req.Method),
			"installments": req.Installments,
		},
	}
	var resp psCharge
	if err := g.client.postJSON(ctx, "/charges", body, &resp); err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(resp)
	result := &ChargeResult{ExternalTransactionID: resp.ID, ProviderPayload: payload}
	if resp.Status == "DECLINED" {
		result.Declined = true
		result.DeclineReason = resp.PaymentResponse.Message
	}
	return result, nil
}

func (g *PagSeguro) GeneratePixCharge(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal) (*PixCharge, error) {
	body := map[string]interface{}{
		"reference_id": saleID.String(),
		"qr_codes": []map[string]interface{}{
			{"amount": map[string]int64{"value": toCentavos(amount)}},
		},
	}
	var resp psCharge
	if err := g.client.postJSON(ctx, "/orders", body, &resp); err != nil {
		return nil, err
	}
	pix := &PixCharge{ExternalTransactionID: resp.ID}
	if len(resp.QRCodes) > 0 {
		pix.Payload = resp.QRCodes[0].Text
		for _, l := range resp.QRCodes[0].Links {
			if l.Media == "image/png" {
				pix.QRImage = l.Href
			}
		}
	}
	return pix, nil
}

type psWebhook struct {
	NotificationCode string     `json:"notificationCode"`
	Charges          []psCharge `json:"charges"`
}

func (g *PagSeguro) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var wh psWebhook
	if err := json.Unmarshal(raw, &wh); err != nil || len(wh.Charges) == 0 || wh.Charges[0].ID == "" {
		return nil, nil
	}
	ch := wh.Charges[0]
	outcome := OutcomePending
	switch ch.Status {
	case "PAID":
		outcome = OutcomeApproved
	case "DECLINED", "CANCELED":
		outcome = OutcomeRejected
	}
	return &WebhookEvent{
		ExternalTransactionID: ch.ID,
		Outcome:               outcome,
		Metadata:              map[string]string{"status": ch.Status, "notification": wh.NotificationCode},
	}, nil
}

func (g *PagSeguro) CancelCharge(ctx context.Context, externalID string) bool {
	err := g.client.postJSON(ctx, "/charges/"+externalID+"/cancel", map[string]string{}, nil)
	if err != nil {
		log.Warn().Str("gateway", g.Name()).Str("transaction_id", externalID).Err(err).
			Msg("cancel charge failed")
		return false
	}
	return true
}

func psMethod(method string) string {
	switch method {
	case "DEBIT_CARD":
		return "DEBIT_CARD"
	case "PIX":
		return "PIX"
	default:
		return "CREDIT_CARD"
	}
}

func toCentavos(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}
