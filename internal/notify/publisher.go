package notify

import (
	"context"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// Publisher emits order events after the checkout transaction committed.
// Publishing only buffers in memory; delivery to Kafka happens asynchronously.
type Publisher struct {
	Created       publisher
	StatusChanged publisher
	Service       string
	Now           func() time.Time
}

type traceKey struct{}

// WithTraceID attaches a request id that ends up in the envelope's trace_id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

func (p *Publisher) NotifyOrderCreated(ctx context.Context, o orders.Order) error {
	return p.publish(ctx, p.Created, orders.EventOrderCreated, o.ID, orders.NewOrderCreatedPayload(o))
}

func (p *Publisher) NotifyStatusChanged(ctx context.Context, o orders.Order, from orders.Status) error {
	return p.publish(ctx, p.StatusChanged, orders.EventOrderStatusChanged, o.ID, orders.OrderStatusChangedPayload{
		OrderID:   o.ID,
		GroupID:   o.GroupID,
		From:      from,
		To:        o.Status,
		ChangedAt: o.UpdatedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, w publisher, eventType, orderID string, payload any) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    p.now().UTC(),
		Producer:      p.Service,
		TraceID:       traceID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if err := w.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, "1")...); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", eventType, orderID, err)
	}
	return nil
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
