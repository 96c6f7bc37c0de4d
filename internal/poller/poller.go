package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultGroupID = "takeout-cart-cleaner"
	maxAttempts    = 3
)

// CartClearer removes a cart only while it still has the given fingerprint.
type CartClearer interface {
	ClearIfFingerprint(ctx context.Context, sessionID string, merchantID int64, fingerprint string) (bool, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller consumes order events and clears the carts that were turned into orders.
type Poller struct {
	carts   CartClearer
	reader  messageReader
	backoff time.Duration
	log     zerolog.Logger
}

func NewPoller(carts CartClearer, topic, groupID string, log zerolog.Logger, brokers ...string) *Poller {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{
		carts:   carts,
		reader:  reader,
		backoff: 200 * time.Millisecond,
		log:     log.With().Str("component", "order_event_poller").Logger(),
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.getMessageAndClearCart(ctx)
	}
}

func (p *Poller) Close() error {
	return p.reader.Close()
}

func (p *Poller) getMessageAndClearCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.log.Error().Err(err).Msg("error reading message")
		}
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = p.handleMessage(ctx, m)
		if err == nil || errors.Is(err, errSkip) {
			return
		}
		p.log.Warn().Err(err).Int("attempt", attempt).Int64("offset", m.Offset).Msg("failed to handle order event")

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	p.log.Error().Err(err).Int64("offset", m.Offset).Msg("giving up on order event")
}

var errSkip = errors.New("message skipped")

func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	if eventType := header(m, "event_type"); eventType != "" && eventType != domain.EventOrderPlaced {
		return errSkip
	}

	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Error().Err(err).Msg("error parsing message")
		return errSkip
	}
	if event.SessionID == "" || event.CartFingerprint == "" {
		p.log.Warn().Int64("order_id", event.OrderID).Msg("order event without cart reference")
		return errSkip
	}

	cleared, err := p.carts.ClearIfFingerprint(ctx, event.SessionID, event.MerchantID, event.CartFingerprint)
	if err != nil {
		return fmt.Errorf("clear cart for order %d: %w", event.OrderID, err)
	}
	p.log.Debug().
		Int64("order_id", event.OrderID).
		Str("session_id", event.SessionID).
		Bool("cleared", cleared).
		Msg("order event handled")
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
