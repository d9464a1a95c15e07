package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/discount"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type errorResp struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
	Current   string `json:"current,omitempty"`
	Attempted string `json:"attempted,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: msg})
}

// writeError maps domain errors onto HTTP status codes. Anything unknown is a
// 500 and gets logged; its text never reaches the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		stock *inventory.InsufficientStockError
		disc  *discount.InvalidError
		trans *fulfillment.TransitionError
	)
	switch {
	case errors.As(err, &stock):
		available := stock.Available
		writeJSON(w, http.StatusConflict, errorResp{
			Error:     "insufficient stock",
			ProductID: stock.ProductID,
			Requested: stock.Requested,
			Available: &available,
		})
	case errors.As(err, &disc):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp{Error: "discount invalid", Reason: string(disc.Reason)})
	case errors.As(err, &trans):
		writeJSON(w, http.StatusConflict, errorResp{
			Error:     "invalid transition",
			Reason:    trans.Reason,
			Current:   string(trans.From),
			Attempted: string(trans.To),
		})
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, inventory.ErrRecordNotFound),
		errors.Is(err, fulfillment.ErrProductNotFound),
		errors.Is(err, fulfillment.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.Is(err, orders.ErrAlreadyExists),
		errors.Is(err, discount.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResp{Error: err.Error()})
	case errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidAmount),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, discount.ErrInvalidDefinition),
		errors.Is(err, fulfillment.ErrInvalidAdjustment):
		badRequest(w, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error"})
	}
}
