package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/school-fee-ledger/internal/config"
	"github.com/school-fee-ledger/internal/domain/outbox"
	"github.com/school-fee-ledger/internal/platform/messaging/producers"
)

// Event headers set on every published ledger event. Consumers dedupe on
// event-id and group by aggregate-id (an entry id or a generation run id).
const (
	HeaderEventID     = "event-id"
	HeaderEventType   = "event-type"
	HeaderAggregateID = "aggregate-id"
)

// Poller relays ledger events from the outbox table to the ledger events topic
type Poller struct {
	outboxRepo   outbox.Repository
	publisher    producers.EventPublisher
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
	publishLimit int
}

// tally counts the outcome of one pass over the outbox.
type tally struct {
	published int
	retrying  int
	abandoned int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:   outboxRepo,
		publisher:    publisher,
		logger:       logger,
		interval:     cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
		publishLimit: cfg.MaxRetryAttempts,
	}
}

// Start relays events until ctx is canceled. The first pass runs right away
// so events written while the worker was down go out without waiting a tick.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Ledger event relay started",
		"interval", p.interval.String(),
		"batch_size", p.batchSize,
		"publish_limit", p.publishLimit,
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.drain(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("Ledger event relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// drain relays batches until one comes back short, so a backlog left by a
// large challan run clears in one tick instead of one batch per tick.
func (p *Poller) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := p.relayBatch(ctx)
		if err != nil {
			p.logger.Error("Ledger event relay pass failed", "error", err)
			return
		}
		if n < p.batchSize {
			return
		}
	}
}

// relayBatch publishes one batch of pending events and returns how many were read.
func (p *Poller) relayBatch(ctx context.Context) (int, error) {
	pending, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var t tally
	for _, msg := range pending {
		if ctx.Err() != nil {
			// unsent events stay PENDING for the next run
			break
		}
		p.relay(ctx, msg, &t)
	}

	p.logger.Info("Relayed ledger events",
		"read", len(pending),
		"published", t.published,
		"retrying", t.retrying,
		"abandoned", t.abandoned,
	)
	return len(pending), nil
}

func (p *Poller) relay(ctx context.Context, msg *outbox.Message, t *tally) {
	logger := p.logger.With(
		"outbox_id", msg.ID,
		"event_id", msg.EventID.String(),
		"event_type", msg.EventType,
		"school_id", msg.Scope,
	)

	if err := p.publish(ctx, msg); err != nil {
		p.recordFailure(ctx, logger, msg, err, t)
		return
	}

	// If this update fails the event is published again next pass; consumers dedupe on event-id.
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Ledger event published but not marked processed", "error", err)
		return
	}
	t.published++
	logger.Debug("Ledger event published")
}

// recordFailure spends one publish attempt. An event whose attempts reach the
// publish limit is parked as FAILED_TO_PUBLISH for an operator to inspect.
func (p *Poller) recordFailure(ctx context.Context, logger *slog.Logger, msg *outbox.Message, cause error, t *tally) {
	attempts := msg.Attempts + 1
	logger = logger.With("attempt", attempts, "publish_limit", p.publishLimit)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		logger.Error("Could not record failed ledger event publish", "publish_error", cause, "error", err)
		return
	}

	if attempts < p.publishLimit {
		t.retrying++
		logger.Warn("Ledger event publish failed, will retry", "error", cause)
		return
	}

	t.abandoned++
	logger.Error("Ledger event abandoned after publish limit", "error", cause)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusFailedToPublish); err != nil {
		logger.Error("Could not park abandoned ledger event", "error", err)
	}
}

func (p *Poller) publish(ctx context.Context, msg *outbox.Message) error {
	return p.publisher.Publish(ctx, msg.Scope, msg.Payload,
		kafka.Header{Key: HeaderEventID, Value: []byte(msg.EventID.String())},
		kafka.Header{Key: HeaderEventType, Value: []byte(msg.EventType)},
		kafka.Header{Key: HeaderAggregateID, Value: []byte(msg.AggregateID.String())},
	)
}
