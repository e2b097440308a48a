package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/marketplace-orders/internal/orders"
	"github.com/ariefcatur/marketplace-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Service *orders.Service
	// Idem and Cache are optional; without Redis the handler simply skips them.
	Idem  *redisx.Idempotency
	Cache *redisx.OrderCache
	Log   *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireViewer)
		r.Post("/orders", h.placeOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
	})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Kind: string(orders.KindValidation)})
		return
	}
	v := viewerFrom(r.Context())
	req.UserID = v.UserID
	ctx := r.Context()

	idemKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if idemKey != "" && h.Idem != nil {
		existing, err := h.Idem.Begin(ctx, v.UserID, idemKey)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: string(orders.KindConflict)})
			return
		case err != nil:
			// Redis is an optimisation here; carry on without it.
			h.Log.Warn("idempotency unavailable", zap.Error(err))
			idemKey = ""
		case existing != "":
			o, err := h.Service.GetOrder(ctx, v, existing)
			if err != nil {
				writeError(w, h.Log, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
	} else {
		idemKey = ""
	}

	o, err := h.Service.PlaceOrder(ctx, req)
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), v.UserID, idemKey); rerr != nil {
				h.Log.Warn("release idempotency key", zap.Error(rerr))
			}
		}
		writeError(w, h.Log, err)
		return
	}

	bg := context.WithoutCancel(ctx)
	if idemKey != "" {
		if err := h.Idem.Complete(bg, v.UserID, idemKey, o.ID); err != nil {
			h.Log.Warn("store idempotency key", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	h.cacheOrder(bg, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v := viewerFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		o, err := h.Cache.Get(ctx, id)
		if err == nil {
			if !v.CanView(o) {
				writeError(w, h.Log, &orders.NotFoundError{Entity: "order", ID: id})
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
		if !errors.Is(err, redisx.ErrCacheMiss) {
			h.Log.Warn("order cache read", zap.String("order_id", id), zap.Error(err))
		}
	}

	o, err := h.Service.GetOrder(ctx, v, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, h.Log, &orders.ValidationError{Field: "limit", Reason: "must be between 1 and 500"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx, viewerFrom(ctx), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, o); err != nil {
		h.Log.Warn("order cache write", zap.String("order_id", o.ID), zap.Error(err))
	}
}
