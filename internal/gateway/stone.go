package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StoneTerminal drives an in-store card terminal over its local HTTP bridge.
// Card-present only: no PIX, and installment plans never carry interest
// because the acquirer bills the merchant, not the customer.
type StoneTerminal struct {
	client          *providerClient
	maxInstallments int
}

func NewStoneTerminal(cfg *config.Config, cb *infra.CircuitBreaker) *StoneTerminal {
	return &StoneTerminal{
		client:          newProviderClient("stone", cfg.StoneTerminalURL, "", cb),
		maxInstallments: cfg.InstallmentMax,
	}
}

func (g *StoneTerminal) Name() string { return "stone" }

func (g *StoneTerminal) CalculateInstallments(amount decimal.Decimal) []dto.InstallmentOption {
	return installmentPlan(amount, g.maxInstallments, g.maxInstallments, decimal.Zero)
}

type stoneResponse struct {
	AcquirerTID string `json:"acquirer_tid"`
	Status      string `json:"status"` // approved | denied
	Reason      string `json:"reason"`
}

func (g *StoneTerminal) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := map[string]interface{}{
		"order_id":     req.SaleID.String(),
		"amount":       toCentavos(req.Amount),
		"type":         req.Method,
		"installments": req.Installments,
	}
	var resp stoneResponse
	if err := g.client.postJSON(ctx, "/v1/transactions", body, &resp); err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(resp)
	result := &ChargeResult{ExternalTransactionID: resp.AcquirerTID, ProviderPayload: payload}
	if resp.Status == "denied" {
		result.Declined = true
		result.DeclineReason = resp.Reason
	}
	return result, nil
}

func (g *StoneTerminal) GeneratePixCharge(_ context.Context, _ uuid.UUID, _ decimal.Decimal) (*PixCharge, error) {
	return nil, &apierror.GatewayError{Gateway: g.Name(), Err: errors.New("pix not supported by card terminal")}
}

type stoneWebhook struct {
	Event       string `json:"event"`
	AcquirerTID string `json:"acquirer_tid"`
	Status      string `json:"status"`
}

func (g *StoneTerminal) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var wh stoneWebhook
	if err := json.Unmarshal(raw, &wh); err != nil || wh.Event != "transaction" || wh.AcquirerTID == "" {
		return nil, nil
	}
	outcome := OutcomePending
	switch wh.Status {
	case "approved":
		outcome = OutcomeApproved
	case "denied", "cancelled":
		outcome = OutcomeRejected
	}
	return &WebhookEvent{
		ExternalTransactionID: wh.AcquirerTID,
		Outcome:               outcome,
		Metadata:              map[string]string{"status": wh.Status},
	}, nil
}

func (g *StoneTerminal) CancelCharge(ctx context.Context, externalID string) bool {
	err := g.client.postJSON(ctx, "/v1/transactions/"+externalID+"/cancel", map[string]string{}, nil)
	if err != nil {
		log.Warn().Str("gateway", g.Name()).Str("transaction_id", externalID).Err(err).
			Msg("cancel charge failed")
		return false
	}
	return true
}
