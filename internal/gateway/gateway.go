// Package gateway holds the payment-provider capability set: charge creation,
// installment plans, PIX charges, webhook parsing and best-effort cancellation.
// One implementation per provider, selected by a factory keyed on
// configuration — never a process-wide singleton.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Webhook outcomes as reported by providers, normalized.
const (
	OutcomeApproved = "APPROVED"
	OutcomeRejected = "REJECTED"
	OutcomePending  = "PENDING"
)

// ChargeRequest is the provider-independent charge creation input.
type ChargeRequest struct {
	SaleID       uuid.UUID
	Amount       decimal.Decimal
	Method       string
	Installments int
	PayerContact string
}

// ChargeResult is a provider's answer to CreateCharge. Business-level declines
// come back as Declined=true, never as an error.
type ChargeResult struct {
	ExternalTransactionID string
	Declined              bool
	DeclineReason         string
	ProviderPayload       json.RawMessage
}

// PixCharge is a generated PIX payment intent.
type PixCharge struct {
	ExternalTransactionID string
	Payload               string
	QRImage               string // base64 PNG
}

// WebhookEvent is a normalized inbound gateway notification.
type WebhookEvent struct {
	ExternalTransactionID string
	Outcome               string
	Metadata              map[string]string
}

// PaymentGateway is the capability set every provider implements.
type PaymentGateway interface {
	Name() string
	// CalculateInstallments is a pure computation from the provider's
	// configured interest thresholds.
	CalculateInstallments(amount decimal.Decimal) []dto.InstallmentOption
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	GeneratePixCharge(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal) (*PixCharge, error)
	// ParseWebhook returns (nil, nil) when the payload is not recognized by
	// this provider — the caller acknowledges without side effects.
	ParseWebhook(raw []byte) (*WebhookEvent, error)
	// CancelCharge is best-effort; false is not fatal to the caller.
	CancelCharge(ctx context.Context, externalID string) bool
}

// Factory builds providers from configuration at request scope.
type Factory struct {
	cfg *config.Config
	cb  *infra.CircuitBreaker
}

func NewFactory(cfg *config.Config, cb *infra.CircuitBreaker) *Factory {
	return &Factory{cfg: cfg, cb: cb}
}

// Select returns the provider for the given name; an empty name falls back to
// the configured default.
func (f *Factory) Select(name string) (PaymentGateway, error) {
	if name == "" {
		name = f.cfg.Gateway
	}
	switch name {
	case "dev":
		return NewDevGateway(f.cfg), nil
	case "mercadopago":
		return NewMercadoPago(f.cfg, f.cb), nil
	case "pagseguro":
		return NewPagSeguro(f.cfg, f.cb), nil
	case "stone":
		return NewStoneTerminal(f.cfg, f.cb), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}
}

// Default returns the configured default provider.
func (f *Factory) Default() (PaymentGateway, error) {
	return f.Select(f.cfg.Gateway)
}
