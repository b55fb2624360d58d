package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.ListVisibleProducts(ctx)
	if err != nil {
		h.logger().Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

type feeResp struct {
	City        string          `json:"city"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Note        string          `json:"note,omitempty"`
}

// deliveryFee never answers 404: an unconfigured city gets the default fee.
func (h *OrdersHandler) deliveryFee(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q, err := h.Fees.ResolveFee(ctx, city)
	if err != nil {
		h.logger().Error("resolve delivery fee", zap.String("city", city), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve delivery fee")
		return
	}
	resp := feeResp{City: q.City, DeliveryFee: q.Fee}
	if !q.Known {
		resp.Note = "City not configured, default delivery fee applied"
	}
	writeJSON(w, http.StatusOK, resp)
}
