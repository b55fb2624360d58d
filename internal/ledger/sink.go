package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const maxErrorBody = 512

// Sink is the external order ledger the consumer mirrors into.
type Sink interface {
	AppendOrder(ctx context.Context, p orders.OrderCreatedPayload, eventID string) error
	UpdateStatus(ctx context.Context, p orders.OrderStatusChangedPayload, eventID string) error
}

// StatusError is a non-2xx answer from the ledger.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger responded %d: %s", e.Code, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

type HTTPSink struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSink(baseURL string) *HTTPSink {
	return &HTTPSink{BaseURL: baseURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSink) AppendOrder(ctx context.Context, p orders.OrderCreatedPayload, eventID string) error {
	return s.send(ctx, http.MethodPost, s.BaseURL+"/orders", p, eventID)
}

type statusPatch struct {
	Status    orders.Status `json:"status"`
	From      orders.Status `json:"from"`
	GroupID   string        `json:"group_id"`
	ChangedAt time.Time     `json:"changed_at"`
}

func (s *HTTPSink) UpdateStatus(ctx context.Context, p orders.OrderStatusChangedPayload, eventID string) error {
	body := statusPatch{Status: p.To, From: p.From, GroupID: p.GroupID, ChangedAt: p.ChangedAt}
	return s.send(ctx, http.MethodPatch, s.BaseURL+"/orders/"+url.PathEscape(p.OrderID), body, eventID)
}

func (s *HTTPSink) send(ctx context.Context, method, target string, body any, eventID string) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode ledger body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", eventID)

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
}

func (s *HTTPSink) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}
