package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/ports"
)

const (
	defaultWorkerInterval = 2 * time.Second
	defaultWorkerBatch    = 100
	defaultClaimTTL       = 30 * time.Second
	defaultMaxRetries     = 5
)

// OutboxWorker drains the ledger outbox toward the external chain
// writer. Each pass claims a batch under a fresh token so concurrent
// workers never publish the same row twice.
type OutboxWorker struct {
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

type OutboxWorkerOptions struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

func NewOutboxWorker(outbox ports.OutboxRepository, publisher ports.EventPublisher, logger *slog.Logger, opts OutboxWorkerOptions) *OutboxWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultWorkerInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultWorkerBatch
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaultClaimTTL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &OutboxWorker{
		outbox:     outbox,
		publisher:  publisher,
		logger:     logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
		claimTTL:   opts.ClaimTTL,
		maxRetries: opts.MaxRetries,
	}
}

// Run drains the outbox until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox pass failed",
					slog.String("module", "trustengine"),
					slog.String("layer", "events"),
					slog.String("operation", "outbox_process"),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ProcessOnce claims and publishes one batch of unpublished events.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	claimUntil := time.Now().UTC().Add(w.claimTTL)

	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, claimUntil)
	if err != nil {
		return err
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		publishErr := w.publisher.Publish(ctx, record.EventType, record.Payload)
		now := time.Now().UTC()
		if publishErr == nil {
			if err := w.outbox.MarkPublished(ctx, record.OutboxID, claimToken, now); err != nil {
				w.logger.WarnContext(ctx, "mark published failed",
					slog.String("outbox_id", record.OutboxID.String()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if record.RetryCount+1 >= w.maxRetries {
			w.logger.ErrorContext(ctx, "outbox event dead-lettered",
				slog.String("outbox_id", record.OutboxID.String()),
				slog.String("event_type", record.EventType),
				slog.Int("retry_count", record.RetryCount+1),
				slog.String("error", publishErr.Error()),
			)
			if err := w.outbox.MarkDeadLettered(ctx, record.OutboxID, claimToken, publishErr.Error(), now); err != nil {
				w.logger.WarnContext(ctx, "mark dead-lettered failed",
					slog.String("outbox_id", record.OutboxID.String()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		w.logger.WarnContext(ctx, "outbox publish failed",
			slog.String("outbox_id", record.OutboxID.String()),
			slog.String("event_type", record.EventType),
			slog.Int("retry_count", record.RetryCount+1),
			slog.String("error", publishErr.Error()),
		)
		if err := w.outbox.MarkFailed(ctx, record.OutboxID, claimToken, publishErr.Error(), now); err != nil {
			w.logger.WarnContext(ctx, "mark failed errored",
				slog.String("outbox_id", record.OutboxID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
