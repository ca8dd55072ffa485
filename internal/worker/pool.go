package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueCancelCharge = "jobs:cancel_charge"

	maxCancelAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// CancelChargePayload asks a provider to void an expired or abandoned charge.
type CancelChargePayload struct {
	Gateway               string `json:"gateway"`
	ExternalTransactionID string `json:"external_transaction_id"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueCancelCharge pushes a best-effort gateway cancel to Redis.
func (d *Dispatcher) EnqueueCancelCharge(ctx context.Context, payload CancelChargePayload) error {
	return d.enqueue(ctx, QueueCancelCharge, "cancel_charge", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, gateways *gateway.Factory, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, gateways, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, gateways *gateway.Factory, id int) {
	queues := []string{QueueCancelCharge}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, gateways, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, gateways *gateway.Factory, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	switch job.Type {
	case "cancel_charge":
		processCancelCharge(ctx, rdb, gateways, queue, job)
	default:
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("unknown job type dropped")
	}
}

// processCancelCharge voids a charge at the provider. Failed attempts are
// requeued up to maxCancelAttempts, then parked in the DLQ.
func processCancelCharge(ctx context.Context, rdb *redis.Client, gateways *gateway.Factory, queue string, job Job) {
	var payload CancelChargePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		log.Error().Err(err).Msg("cancel_charge: bad payload")
		return
	}

	gw, err := gateways.Select(payload.Gateway)
	if err != nil {
		log.Error().Str("gateway", payload.Gateway).Err(err).Msg("cancel_charge: unknown gateway")
		return
	}

	if gw.CancelCharge(ctx, payload.ExternalTransactionID) {
		log.Info().
			Str("gateway", payload.Gateway).
			Str("transaction_id", payload.ExternalTransactionID).
			Msg("charge cancelled at provider")
		return
	}

	job.Attempts++
	if job.Attempts >= maxCancelAttempts {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "max cancel attempts exceeded", job.Attempts)
		return
	}
	encoded, _ := json.Marshal(job)
	if err := rdb.LPush(ctx, queue, encoded).Err(); err != nil {
		log.Error().Err(err).Msg("cancel_charge: requeue failed")
	}
}
