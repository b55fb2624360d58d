package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	key, value []byte
	headers    []kafkago.Header
}

type recorder struct {
	msgs []captured
	err  error
}

func (r *recorder) Publish(key, value []byte, headers ...kafkago.Header) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, captured{key, value, headers})
	return nil
}

func sampleOrder() orders.Order {
	ts := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	return orders.Order{
		ID: "0b7c6f1e-4a52-4c61-9a38-2f1f5a2a0c01", GroupID: "grp-1", CustomerName: "Amina",
		CustomerEmail: "amina@example.com", Phone: "+213555000111", City: "Algiers",
		DeliveryType: orders.DeliveryHome, Status: orders.StatusPending, ProductID: "A", Quantity: 2,
		ProductPrice: decimal.RequireFromString("100"), DeliveryFee: decimal.RequireFromString("10"),
		Total: decimal.RequireFromString("210"), CreatedAt: ts, UpdatedAt: ts,
	}
}

func TestNotifyOrderCreated_publishesEnvelope(t *testing.T) {
	rec := &recorder{}
	p := &Publisher{Created: rec, Service: "storefront-api"}
	o := sampleOrder()

	require.NoError(t, p.NotifyOrderCreated(WithTraceID(context.Background(), "req-42"), o))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, o.ID, string(rec.msgs[0].key))
	assert.Equal(t, orders.EventOrderCreated, string(rec.msgs[0].headers[0].Value))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(rec.msgs[0].value, &env))
	assert.Equal(t, orders.EventOrderCreated, env.EventType)
	assert.Equal(t, "req-42", env.TraceID)
	assert.Equal(t, o.ID, env.CorrelationID)

	payload, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "grp-1", payload.GroupID)
	assert.True(t, o.Total.Equal(payload.Total))
}

func TestNotifyStatusChanged_carriesTransition(t *testing.T) {
	rec := &recorder{}
	p := &Publisher{StatusChanged: rec, Service: "storefront-api"}
	o := sampleOrder()
	o.Status = orders.StatusProcessing

	require.NoError(t, p.NotifyStatusChanged(context.Background(), o, orders.StatusPending))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(rec.msgs[0].value, &env))
	payload, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, payload.From)
	assert.Equal(t, orders.StatusProcessing, payload.To)
}

func TestNotify_publishErrorIsReturned(t *testing.T) {
	p := &Publisher{Created: &recorder{err: kafkax.ErrInboxFull}}

	err := p.NotifyOrderCreated(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, kafkax.ErrInboxFull)
}
