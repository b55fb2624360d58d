package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/delivery"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/notify"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	GetOrderStatus(ctx context.Context, id string) (orders.Status, error)
	ListByGroup(ctx context.Context, groupID string) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id string, to orders.Status) (orders.Order, orders.Status, error)
	ListVisibleProducts(ctx context.Context) ([]orders.Product, error)
}

type FeeQuoter interface {
	ResolveFee(ctx context.Context, city string) (delivery.Quote, error)
}

type StatusNotifier interface {
	NotifyStatusChanged(ctx context.Context, o orders.Order, from orders.Status) error
}

// OrdersHandler serves checkout, order lookups and the catalog. Idem, Cache,
// Notifier and Metrics are optional.
type OrdersHandler struct {
	Checkout Checkouter
	Store    OrderStore
	Fees     FeeQuoter
	Notifier StatusNotifier
	Idem     IdempotencyStore
	Cache    StatusCache
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Timeout  time.Duration
}

const defaultCheckoutTimeout = 5 * time.Second

type bulkResp struct {
	Success      bool            `json:"success"`
	Orders       []orders.Order  `json:"orders"`
	OrderGroupID string          `json:"orderGroupId"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	Total        decimal.Decimal `json:"total"`
	Message      string          `json:"message"`
	Idempotent   bool            `json:"idempotent,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders/bulk", h.createBulk)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Get("/order-groups/{id}", h.getGroup)
	r.Get("/products", h.listProducts)
	r.Get("/cities/delivery-fee", h.deliveryFee)
}

func (h *OrdersHandler) createBulk(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if !decodeBody(w, r, &req) {
		h.Metrics.ObserveCheckout("rejected", 0)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	ctx = notify.WithTraceID(ctx, middleware.GetReqID(r.Context()))
	log := h.logger().With(zap.String("request_id", middleware.GetReqID(r.Context())))

	idemKey := r.Header.Get("Idempotency-Key")
	fingerprint := req.Fingerprint()
	if idemKey != "" && h.Idem != nil {
		state, groupID, err := h.Idem.Claim(ctx, idemKey, fingerprint)
		switch {
		case err != nil:
			// the database stays the source of truth; run without the guard
			log.Warn("idempotency claim failed", zap.Error(err))
			idemKey = ""
		case state == ClaimMismatch:
			writeError(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used for a different request")
			return
		case state == ClaimInFlight:
			writeError(w, http.StatusConflict, "a checkout with this Idempotency-Key is already in progress")
			return
		case state == ClaimDone:
			h.replay(ctx, w, groupID)
			return
		}
	} else {
		idemKey = ""
	}

	res, err := h.Checkout.Checkout(ctx, req)
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
				log.Warn("idempotency release failed", zap.Error(rerr))
			}
		}
		h.writeCheckoutError(w, log, err)
		return
	}
	if idemKey != "" {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), idemKey, fingerprint, res.GroupID); err != nil {
			log.Warn("idempotency complete failed", zap.String("group_id", res.GroupID), zap.Error(err))
		}
	}
	if h.Cache != nil {
		for _, o := range res.Orders {
			h.Cache.Set(ctx, o.ID, o.Status)
		}
	}
	h.Metrics.ObserveCheckout("committed", len(res.Orders))

	writeJSON(w, http.StatusCreated, bulkResp{
		Success:      true,
		Orders:       res.Orders,
		OrderGroupID: res.GroupID,
		DeliveryFee:  res.DeliveryFee,
		Total:        res.Total,
		Message:      "Orders created successfully",
	})
}

func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, groupID string) {
	group, err := h.Store.ListByGroup(ctx, groupID)
	if err != nil {
		h.logger().Error("idempotent replay lookup", zap.String("group_id", groupID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	fee, total := decimal.Zero, decimal.Zero
	for _, o := range group {
		fee = fee.Add(o.DeliveryFee)
		total = total.Add(o.Total)
	}
	h.Metrics.ObserveCheckout("replayed", 0)
	writeJSON(w, http.StatusOK, bulkResp{
		Success:      true,
		Orders:       group,
		OrderGroupID: groupID,
		DeliveryFee:  fee,
		Total:        total,
		Message:      "Orders already created",
		Idempotent:   true,
	})
}

func (h *OrdersHandler) writeCheckoutError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		missing     *checkout.MissingFieldsError
		malformed   *checkout.MalformedLineError
		unavailable *checkout.ProductsUnavailableError
		stock       *checkout.InsufficientStockError
		price       *checkout.PriceChangedError
		conflict    *checkout.ConcurrentStockExhaustionError
	)
	code, outcome := http.StatusInternalServerError, "error"
	switch {
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.As(err, &missing),
		errors.As(err, &malformed),
		errors.As(err, &stock),
		errors.As(err, &price):
		code, outcome = http.StatusBadRequest, "rejected"
	case errors.As(err, &unavailable):
		code, outcome = http.StatusNotFound, "rejected"
	case errors.As(err, &conflict):
		code, outcome = http.StatusConflict, "conflict"
	}
	h.Metrics.ObserveCheckout(outcome, 0)

	if code == http.StatusInternalServerError {
		log.Error("checkout failed", zap.Error(err))
		writeError(w, code, "failed to create orders")
		return
	}
	log.Info("checkout refused", zap.Int("status", code), zap.Error(err))
	var detailed checkout.DetailedError
	if errors.As(err, &detailed) {
		writeError(w, code, err.Error(), detailed.Details()...)
		return
	}
	writeError(w, code, err.Error())
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusResp struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, ok := h.Cache.Get(ctx, id); ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: s})
			return
		}
	}
	s, err := h.Store.GetOrderStatus(ctx, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Set(ctx, id, s)
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: s})
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := orders.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status", req.Status)
		return
	}

	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	o, from, err := h.Store.UpdateStatus(ctx, id, to)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Invalidate(ctx, id)
	}
	if h.Notifier != nil {
		nctx := notify.WithTraceID(ctx, middleware.GetReqID(r.Context()))
		if err := h.Notifier.NotifyStatusChanged(nctx, o, from); err != nil {
			h.logger().Warn("status notification failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, o)
}

type groupResp struct {
	OrderGroupID string          `json:"orderGroupId"`
	Orders       []orders.Order  `json:"orders"`
	Total        decimal.Decimal `json:"total"`
}

func (h *OrdersHandler) getGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	group, err := h.Store.ListByGroup(ctx, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	total := decimal.Zero
	for _, o := range group {
		total = total.Add(o.Total)
	}
	writeJSON(w, http.StatusOK, groupResp{OrderGroupID: id, Orders: group, Total: total})
}

func (h *OrdersHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger().Error("order store", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *OrdersHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return defaultCheckoutTimeout
}

func (h *OrdersHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
