package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DevGateway is the internal development provider: deterministic, no network.
// Charges are approved unless the payer contact carries the "decline" marker,
// which exercises the declined-not-error contract in tests and demos.
type DevGateway struct {
	secret          string
	maxInstallments int
	interestFree    int
	ratePct         decimal.Decimal
}

func NewDevGateway(cfg *config.Config) *DevGateway {
	return &DevGateway{
		secret:          cfg.DevWebhookSecret,
		maxInstallments: cfg.InstallmentMax,
		interestFree:    cfg.InterestFreeMax,
		ratePct:         decimal.NewFromFloat(cfg.InstallmentRatePct),
	}
}

func (g *DevGateway) Name() string { return "dev" }

func (g *DevGateway) CalculateInstallments(amount decimal.Decimal) []dto.InstallmentOption {
	return installmentPlan(amount, g.maxInstallments, g.interestFree, g.ratePct)
}

func (g *DevGateway) CreateCharge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.PayerContact == "decline" {
		return &ChargeResult{Declined: true, DeclineReason: "card declined by issuer"}, nil
	}
	extID := "dev-" + uuid.NewString()
	payload, _ := json.Marshal(map[string]string{
		"transaction_id": extID,
		"sale_id":        req.SaleID.String(),
		"status":         "authorized",
	})
	return &ChargeResult{ExternalTransactionID: extID, ProviderPayload: payload}, nil
}

func (g *DevGateway) GeneratePixCharge(_ context.Context, saleID uuid.UUID, amount decimal.Decimal) (*PixCharge, error) {
	extID := "devpix-" + uuid.NewString()
	payload := fmt.Sprintf("00020126PIX|%s|%s|%s6304", extID, saleID, amount.StringFixed(2))
	return &PixCharge{
		ExternalTransactionID: extID,
		Payload:               payload,
		QRImage:               base64.StdEncoding.EncodeToString([]byte(payload)),
	}, nil
}

// devWebhook is the dev provider's payload shape. Signature is an HMAC-SHA256
// of transaction_id with the shared secret, hex encoded.
type devWebhook struct {
	Source        string `json:"source"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Signature     string `json:"signature"`
}

func (g *DevGateway) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var wh devWebhook
	if err := json.Unmarshal(raw, &wh); err != nil || wh.Source != "dev" || wh.TransactionID == "" {
		return nil, nil
	}
	if wh.Signature != "" && !g.verifySignature(wh.TransactionID, wh.Signature) {
		return nil, fmt.Errorf("dev webhook: bad signature")
	}
	outcome := OutcomePending
	switch wh.Status {
	case "approved", "paid":
		outcome = OutcomeApproved
	case "rejected", "failed":
		outcome = OutcomeRejected
	}
	return &WebhookEvent{
		ExternalTransactionID: wh.TransactionID,
		Outcome:               outcome,
		Metadata:              map[string]string{"status": wh.Status},
	}, nil
}

func (g *DevGateway) CancelCharge(_ context.Context, _ string) bool { return true }

func (g *DevGateway) verifySignature(transactionID, sig string) bool {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(transactionID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// SignWebhook produces the signature a dev webhook must carry — exported for
// tests and for the local simulator.
func (g *DevGateway) SignWebhook(transactionID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(transactionID))
	return hex.EncodeToString(mac.Sum(nil))
}
