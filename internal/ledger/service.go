package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = time.Second
	maxBackoff         = 30 * time.Second
)

// Service mirrors order events into the ledger. It is installed as the
// consumer handler for both order topics.
type Service struct {
	Sink        Sink
	Dedup       Dedup // optional
	MaxAttempts int
	BaseBackoff time.Duration
	Log         *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// a message that never decodes would block the partition forever
		s.logger().Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	log := s.logger().With(
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.String("order_id", env.CorrelationID),
	)

	if s.Dedup != nil && env.EventID != "" {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			log.Warn("dedup lookup failed, processing anyway", zap.Error(err))
		}
		if seen {
			log.Debug("duplicate event skipped")
			return nil
		}
	}

	var call func(ctx context.Context) error
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			log.Error("drop event with bad payload", zap.Error(err))
			return nil
		}
		call = func(ctx context.Context) error { return s.Sink.AppendOrder(ctx, p, env.EventID) }
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			log.Error("drop event with bad payload", zap.Error(err))
			return nil
		}
		call = func(ctx context.Context) error { return s.Sink.UpdateStatus(ctx, p, env.EventID) }
	default:
		return nil
	}

	if err := s.withRetry(ctx, log, call); err != nil {
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			log.Error("ledger rejected event", zap.Int("status", se.Code), zap.String("body", se.Body))
			s.mark(ctx, log, env.EventID)
			return nil
		}
		return fmt.Errorf("mirror %s %s: %w", env.EventType, env.EventID, err)
	}
	s.mark(ctx, log, env.EventID)
	log.Info("event mirrored to ledger")
	return nil
}

func (s *Service) withRetry(ctx context.Context, log *zap.Logger, call func(ctx context.Context) error) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = call(ctx); err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if attempt == attempts {
			break
		}
		wait := backoff(s.base(), attempt)
		log.Warn("ledger call failed, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
		if serr := s.doSleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

func (s *Service) mark(ctx context.Context, log *zap.Logger, eventID string) {
	if s.Dedup == nil || eventID == "" {
		return
	}
	if err := s.Dedup.Mark(ctx, eventID); err != nil {
		log.Warn("dedup mark failed", zap.Error(err))
	}
}

// backoff doubles from base on every attempt, capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (s *Service) base() time.Duration {
	if s.BaseBackoff > 0 {
		return s.BaseBackoff
	}
	return defaultBaseBackoff
}

func (s *Service) doSleep(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
