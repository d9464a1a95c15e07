package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/discount"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
)

type AdminService interface {
	CreateInventory(ctx context.Context, productID string, onHand int) (inventory.Record, error)
	AdjustStock(ctx context.Context, productID string, delta int, note string) (inventory.Record, error)
	GetInventory(ctx context.Context, productID string) (inventory.Record, error)
	ListStockLogs(ctx context.Context, productID string, limit int) ([]inventory.StockLog, error)
	CreateDiscount(ctx context.Context, d *discount.Discount) (*discount.Discount, error)
	GetDiscountByCode(ctx context.Context, code string) (*discount.Discount, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

// AdminHandler serves stock, discount and catalog endpoints.
type AdminHandler struct {
	Svc AdminService
	Log *zap.Logger
}

type createInventoryReq struct {
	ProductID string `json:"product_id"`
	OnHand    int    `json:"on_hand"`
}

type adjustStockReq struct {
	Delta int    `json:"delta"`
	Note  string `json:"note"`
}

type createDiscountReq struct {
	Code          string              `json:"code"`
	Type          discount.Type       `json:"discount_type"`
	Value         decimal.Decimal     `json:"discount_value"`
	MinOrderValue decimal.NullDecimal `json:"min_order_value"`
	MaxUsage      *int                `json:"max_usage"`
	PerUserLimit  *int                `json:"per_user_limit"`
	StartAt       time.Time           `json:"start_at"`
	EndAt         time.Time           `json:"end_at"`
	Active        *bool               `json:"active"`
}

type discountResp struct {
	*discount.Discount
	ValidNow bool `json:"valid_now"`
}

type inventoryResp struct {
	inventory.Record
	Available int `json:"available"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/inventory", h.createInventory)
	r.Get("/inventory/{productID}", h.getInventory)
	r.Post("/inventory/{productID}/adjust", h.adjustStock)
	r.Get("/inventory/{productID}/logs", h.listStockLogs)
	r.Post("/discounts", h.createDiscount)
	r.Get("/discounts/{code}", h.getDiscount)
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.ListProducts(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *AdminHandler) createInventory(w http.ResponseWriter, r *http.Request) {
	var req createInventoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		badRequest(w, "product_id required")
		return
	}
	rec, err := h.Svc.CreateInventory(r.Context(), req.ProductID, req.OnHand)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, inventoryResp{Record: rec, Available: rec.Available()})
}

func (h *AdminHandler) getInventory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Svc.GetInventory(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResp{Record: rec, Available: rec.Available()})
}

func (h *AdminHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	rec, err := h.Svc.AdjustStock(r.Context(), chi.URLParam(r, "productID"), req.Delta, req.Note)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResp{Record: rec, Available: rec.Available()})
}

func (h *AdminHandler) listStockLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.Svc.ListStockLogs(r.Context(), chi.URLParam(r, "productID"), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if logs == nil {
		logs = []inventory.StockLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *AdminHandler) createDiscount(w http.ResponseWriter, r *http.Request) {
	var req createDiscountReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	d := &discount.Discount{
		Code:          req.Code,
		Type:          req.Type,
		Value:         req.Value,
		MinOrderValue: req.MinOrderValue,
		MaxUsage:      req.MaxUsage,
		PerUserLimit:  req.PerUserLimit,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Active:        req.Active == nil || *req.Active,
	}
	created, err := h.Svc.CreateDiscount(r.Context(), d)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) getDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.Svc.GetDiscountByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, discountResp{Discount: d, ValidNow: d.IsValid(time.Now().UTC())})
}
