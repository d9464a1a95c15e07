package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in fulfillment.CreateOrderInput) (*orders.Order, error)
	CreateAndCompleteOrder(ctx context.Context, in fulfillment.CreateOrderInput) (*orders.Order, error)
	ConfirmOrder(ctx context.Context, orderID string) (*orders.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*orders.Order, error)
	ChangeOrderStatus(ctx context.Context, orderID, status string) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*orders.Order, error)
	ListOrdersPage(ctx context.Context, page, size int) (fulfillment.Page, error)
}

type OrdersHandler struct {
	Svc    OrderService
	Status *redisx.StatusCache
	Log    *zap.Logger
}

type changeStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/pos", h.createPOSOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/confirm", h.transition(h.Svc.ConfirmOrder))
	r.Post("/orders/{id}/cancel", h.transition(h.Svc.CancelOrder))
	r.Put("/orders/{id}/status", h.changeStatus)
	r.Get("/users/{userID}/orders", h.listUserOrders)
}

func (h *OrdersHandler) decodeCreate(w http.ResponseWriter, r *http.Request) (fulfillment.CreateOrderInput, bool) {
	var req fulfillment.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return req, false
	}
	if req.UserID == "" || len(req.Items) == 0 {
		badRequest(w, "missing fields")
		return req, false
	}
	return req, true
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *OrdersHandler) createPOSOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.CreateAndCompleteOrder(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// getOrderStatus answers from the status cache and falls back to the database.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	if h.Status != nil {
		s, ok, err := h.Status.Get(ctx, orderID)
		if err != nil {
			h.Log.Warn("status cache read", zap.String("order_id", orderID), zap.Error(err))
		} else if ok {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	o, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cacheStatus(ctx, o))
}

func (h *OrdersHandler) transition(fn func(ctx context.Context, orderID string) (*orders.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		h.cacheStatus(r.Context(), o)
		writeJSON(w, http.StatusOK, toOrderResp(o))
	}
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		badRequest(w, "status required")
		return
	}
	o, err := h.Svc.ChangeOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	p, err := h.Svc.ListOrdersPage(r.Context(), page, size)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResp(p))
}

func (h *OrdersHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListOrdersByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(list))
}

// cacheStatus refreshes the cached status after every change. A cache failure
// only costs the next reader a database hit.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) redisx.CachedStatus {
	s := redisx.CachedStatus{
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		UpdatedAt:     o.UpdatedAt,
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	if h.Status != nil {
		if err := h.Status.Set(ctx, o.ID, s); err != nil {
			h.Log.Warn("status cache write", zap.String("order_id", o.ID), zap.Error(err))
			// Never leave the previous status behind.
			_ = h.Status.Delete(ctx, o.ID)
		}
	}
	return s
}
