package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pixFixture drives a sale into PENDING_PAYMENT with a live PIX charge:
// 100.00 of goods paid 40.00 cash plus 60.00 PIX.
type pixFixture struct {
	*saleFixture
	variantID     string
	transactionID string
}

func newPixFixture(t *testing.T) *pixFixture {
	t.Helper()
	f := newSaleFixture(t)
	ctx := context.Background()

	variantID := f.stockVariant("beans", "100.00", 10)
	_, err := f.env.sales.AddLine(ctx, f.saleID, dto.AddLineRequest{VariantID: variantID.String(), Quantity: 1})
	require.NoError(t, err)
	_, err = f.env.sales.AddPayment(ctx, f.saleID, dto.AddPaymentRequest{Method: model.PaymentCash, Amount: dec("40.00")})
	require.NoError(t, err)
	_, err = f.env.sales.AddPayment(ctx, f.saleID, dto.AddPaymentRequest{Method: model.PaymentPix, Amount: dec("60.00")})
	require.NoError(t, err)

	resp, err := f.env.sales.Finish(ctx, f.saleID)
	require.NoError(t, err)
	require.Equal(t, model.SalePendingPayment, resp.Status)

	pix, err := f.env.sales.GeneratePix(ctx, f.saleID, devGateway(), 30*time.Minute)
	require.NoError(t, err)

	return &pixFixture{saleFixture: f, variantID: variantID.String(), transactionID: pix.ExternalTransactionID}
}

// devWebhookBody builds a signed dev-provider notification.
func devWebhookBody(t *testing.T, transactionID, status string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"source":         "dev",
		"transaction_id": transactionID,
		"status":         status,
		"signature":      devGateway().SignWebhook(transactionID),
	})
	require.NoError(t, err)
	return body
}

func TestWebhookApprovedCompletesSale(t *testing.T) {
	f := newPixFixture(t)
	ctx := context.Background()

	ack, err := f.env.reconcile.Apply(ctx, devGateway(), devWebhookBody(t, f.transactionID, "approved"))
	require.NoError(t, err)
	assert.True(t, ack.Applied)

	sale, err := f.env.sales.Get(ctx, f.saleID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCompleted, sale.Status)

	// Side effects committed exactly as a synchronous finish would.
	require.Len(t, f.env.inventory.movements, 1)
	entries := f.env.shiftRepo.ledgerEntries(f.shiftID, model.MovementSale)
	require.Len(t, entries, 1)
	assert.True(t, dec("100.00").Equal(entries[0].Amount))

	charge := f.env.charges.charges[f.transactionID]
	assert.Equal(t, model.ChargePaid, charge.Status)
	for _, p := range sale.Payments {
		if p.Method == model.PaymentPix {
			require.NotNil(t, p.Status)
			assert.Equal(t, model.PaymentPaid, *p.Status)
		}
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	f := newPixFixture(t)
	ctx := context.Background()
	body := devWebhookBody(t, f.transactionID, "approved")

	ack, err := f.env.reconcile.Apply(ctx, devGateway(), body)
	require.NoError(t, err)
	assert.True(t, ack.Applied)

	// Providers retry aggressively; replays must be pure acknowledgements.
	for i := 0; i < 3; i++ {
		ack, err = f.env.reconcile.Apply(ctx, devGateway(), body)
		require.NoError(t, err)
		assert.True(t, ack.Received)
		assert.False(t, ack.Applied)
	}

	assert.Len(t, f.env.inventory.movements, 1)
	assert.Len(t, f.env.shiftRepo.ledgerEntries(f.shiftID, model.MovementSale), 1)
}

func TestWebhookRejectedFailsPayment(t *testing.T) {
	f := newPixFixture(t)
	ctx := context.Background()

	ack, err := f.env.reconcile.Apply(ctx, devGateway(), devWebhookBody(t, f.transactionID, "rejected"))
	require.NoError(t, err)
	assert.True(t, ack.Applied)

	sale, err := f.env.sales.Get(ctx, f.saleID)
	require.NoError(t, err)
	assert.Equal(t, model.SalePendingPayment, sale.Status, "rejection keeps the sale recoverable")

	charge := f.env.charges.charges[f.transactionID]
	assert.Equal(t, model.ChargeCanceled, charge.Status)
	for _, p := range sale.Payments {
		if p.Method == model.PaymentPix {
			require.NotNil(t, p.Status)
			assert.Equal(t, model.PaymentFailed, *p.Status)
		}
	}

	// No stock or cash side effects for a failed payment.
	assert.Empty(t, f.env.inventory.movements)
	assert.Empty(t, f.env.shiftRepo.ledgerEntries(f.shiftID, model.MovementSale))
}

func TestWebhookUnknownTransaction(t *testing.T) {
	f := newPixFixture(t)
	_, err := f.env.reconcile.Apply(context.Background(), devGateway(), devWebhookBody(t, "devpix-unknown", "approved"))
	var nf *apierror.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestWebhookUnrecognizedPayload(t *testing.T) {
	f := newPixFixture(t)
	ack, err := f.env.reconcile.Apply(context.Background(), devGateway(), []byte(`{"event":"something-else"}`))
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.False(t, ack.Applied)
}

func TestWebhookBadSignature(t *testing.T) {
	f := newPixFixture(t)
	body, err := json.Marshal(map[string]string{
		"source":         "dev",
		"transaction_id": f.transactionID,
		"status":         "approved",
		"signature":      "forged",
	})
	require.NoError(t, err)

	ack, err := f.env.reconcile.Apply(context.Background(), devGateway(), body)
	require.NoError(t, err, "bad signatures are acknowledged to stop retries")
	assert.False(t, ack.Applied)

	sale, err := f.env.sales.Get(context.Background(), f.saleID)
	require.NoError(t, err)
	assert.Equal(t, model.SalePendingPayment, sale.Status)
}

func TestWebhookPendingOutcome(t *testing.T) {
	f := newPixFixture(t)
	ack, err := f.env.reconcile.Apply(context.Background(), devGateway(), devWebhookBody(t, f.transactionID, "created"))
	require.NoError(t, err)
	assert.False(t, ack.Applied)
	assert.Equal(t, model.ChargePending, f.env.charges.charges[f.transactionID].Status)
}

func TestWebhookSkipsDecrementWhenMovementsExist(t *testing.T) {
	f := newPixFixture(t)
	ctx := context.Background()

	// A racing path already decremented for this sale.
	saleRef := f.saleID
	require.NoError(t, f.env.inventory.CreateMovementTx(ctx, nil, &model.StockMovement{
		Type: model.StockMovementSale, SaleID: &saleRef, Quantity: -1, QuantityBefore: 10, QuantityAfter: 9,
	}))

	ack, err := f.env.reconcile.Apply(ctx, devGateway(), devWebhookBody(t, f.transactionID, "approved"))
	require.NoError(t, err)
	assert.True(t, ack.Applied)

	sale, err := f.env.sales.Get(ctx, f.saleID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCompleted, sale.Status)
	assert.Len(t, f.env.inventory.movements, 1, "no second decrement")
}

func TestExpireCharges(t *testing.T) {
	f := newPixFixture(t)
	ctx := context.Background()

	// Fresh charges survive the sweep.
	expired, err := f.env.reconcile.ExpireCharges(ctx, 30*time.Minute, 50)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// Age the charge beyond the TTL.
	charge := f.env.charges.charges[f.transactionID]
	charge.CreatedAt = time.Now().Add(-45 * time.Minute)

	expired, err = f.env.reconcile.ExpireCharges(ctx, 30*time.Minute, 50)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, model.ChargeExpired, f.env.charges.charges[f.transactionID].Status)

	// A webhook landing after expiry is acknowledged without being applied.
	ack, err := f.env.reconcile.Apply(ctx, devGateway(), devWebhookBody(t, f.transactionID, "approved"))
	require.NoError(t, err)
	assert.False(t, ack.Applied)

	sale, err := f.env.sales.Get(ctx, f.saleID)
	require.NoError(t, err)
	assert.Equal(t, model.SalePendingPayment, sale.Status)
	assert.Empty(t, f.env.inventory.movements)
}
