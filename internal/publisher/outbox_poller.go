package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_takeout/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "order-events"

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Reconciler aborts checkout attempts that waited too long for payment.
type Reconciler interface {
	ReconcileStale(ctx context.Context) (int, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers          []string
	Topic            string
	EventInterval    time.Duration
	RecoveryInterval time.Duration
	BatchSize        int
}

// OutboxPoller publishes committed order events to Kafka and periodically runs stale
// checkout reconciliation.
type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	batchSize    int
	repo         OutboxRepository
	reconciler   Reconciler
	writer       messageWriter
	log          zerolog.Logger
}

func NewOutboxPoller(repo OutboxRepository, reconciler Reconciler, cfg Config, log zerolog.Logger) *OutboxPoller {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.EventInterval <= 0 {
		cfg.EventInterval = time.Second
	}
	if cfg.RecoveryInterval <= 0 {
		cfg.RecoveryInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    cfg.EventInterval,
		recoveryTick: cfg.RecoveryInterval,
		batchSize:    cfg.BatchSize,
		repo:         repo,
		reconciler:   reconciler,
		writer:       w,
		log:          log.With().Str("component", "outbox_poller").Logger(),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStaleAttempts(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents returns the number of events published and marked.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event")
			continue
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// Republished on the next tick.
			p.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event as processed")
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) recoverStaleAttempts(ctx context.Context) {
	if p.reconciler == nil {
		return
	}
	if _, err := p.reconciler.ReconcileStale(ctx); err != nil {
		p.log.Error().Err(err).Msg("stale checkout reconciliation failed")
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps events of one order on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
