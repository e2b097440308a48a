package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/marketplace-orders/internal/orders"
	"go.uber.org/zap"
)

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Product   string `json:"product,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k orders.Kind) int {
	switch k {
	case orders.KindValidation:
		return http.StatusBadRequest
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindInsufficientStock:
		return http.StatusConflict
	case orders.KindConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := orders.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: string(kind)}
	switch kind {
	case orders.KindInsufficientStock:
		var is *orders.InsufficientStockError
		if errors.As(err, &is) {
			body.Product = is.Product
			body.Available = &is.Available
			body.Requested = &is.Requested
		}
	case orders.KindConflict:
		w.Header().Set("Retry-After", "1")
		body.Error = "order could not be completed right now, please retry"
	case orders.KindInternal:
		log.Error("request failed", zap.Error(err))
		body.Error = "internal error"
	}
	writeJSON(w, statusFor(kind), body)
}
