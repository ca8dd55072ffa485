package worker

// expiry_cron.go
// Background goroutine that sweeps PIX charges stuck in PENDING past their
// TTL, marks them EXPIRED and enqueues best-effort provider cancels. A charge
// whose webhook arrives after expiry is simply ignored by the reconciler,
// since the charge is no longer PENDING.

import (
	"context"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/service"

	"github.com/rs/zerolog/log"
)

const (
	expiryTickInterval = 1 * time.Minute
	expiryBatchSize    = 50
)

// ExpiryCronConfig holds all dependencies for the expiry goroutine.
type ExpiryCronConfig struct {
	Reconciler service.ReconcileService
	Dispatcher *Dispatcher
	ChargeTTL  time.Duration
}

// StartExpiryCron launches a background goroutine that ticks every minute and
// expires stale PIX charges. It respects the context for graceful shutdown.
func StartExpiryCron(ctx context.Context, cfg ExpiryCronConfig) {
	go func() {
		ticker := time.NewTicker(expiryTickInterval)
		defer ticker.Stop()

		log.Info().Dur("ttl", cfg.ChargeTTL).Msg("expiry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("expiry_cron: shutting down")
				return
			case <-ticker.C:
				processExpiry(ctx, cfg)
			}
		}
	}()
}

func processExpiry(ctx context.Context, cfg ExpiryCronConfig) {
	expired, err := cfg.Reconciler.ExpireCharges(ctx, cfg.ChargeTTL, expiryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("expiry_cron: failed to expire charges")
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Info().Int("count", len(expired)).Msg("expiry_cron: charges expired")

	for _, c := range expired {
		payload := CancelChargePayload{
			Gateway:               c.Gateway,
			ExternalTransactionID: c.ExternalTransactionID,
		}
		if err := cfg.Dispatcher.EnqueueCancelCharge(ctx, payload); err != nil {
			log.Error().
				Str("transaction_id", c.ExternalTransactionID).
				Err(err).
				Msg("expiry_cron: failed to enqueue cancel")
		}
	}
}
