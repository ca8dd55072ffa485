package dto

import (
	"github.com/shopspring/decimal"
)

// InstallmentOption is one row of a gateway's installment plan.
type InstallmentOption struct {
	Count                int             `json:"count"`
	AmountPerInstallment decimal.Decimal `json:"amount_per_installment"`
	HasInterest          bool            `json:"has_interest"`
}

// PixChargeResponse is returned by POST /sales/:id/pix.
type PixChargeResponse struct {
	ExternalTransactionID string `json:"external_transaction_id"`
	Payload               string `json:"payload"`
	QRImage               string `json:"qr_image"` // base64 PNG
	ExpiresAt             string `json:"expires_at"`
}

// WebhookAck is the body returned to providers. Providers only care about the
// status code; the body aids manual debugging.
type WebhookAck struct {
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Note     string `json:"note,omitempty"`
}
