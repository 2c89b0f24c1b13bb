package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/auth"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/policy"
	"github.com/tablepos/api/internal/receipt"
	"github.com/tablepos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	AdvanceOrderStatus(ctx context.Context, restaurantID, orderID uuid.UUID, status string) (database.Order, error)
	AdvanceItemStatus(ctx context.Context, restaurantID, itemID uuid.UUID, status string) (database.OrderItem, error)
	GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.OrderDetail, error)
	ListOrders(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
	GetBill(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.BillResult, error)
	Invoice(ctx context.Context, restaurantID, orderID uuid.UUID) (receipt.Receipt, error)
}

// OrderHandler handles order and order item endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router. Every
// route is gated by its policy operation; the router must have run
// middleware.Authenticate first.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.With(middleware.Authorize(policy.OpOrderCreate)).Post("/", h.Create)
		r.With(middleware.Authorize(policy.OpOrderRead)).Get("/", h.List)
		r.With(middleware.Authorize(policy.OpOrderRead)).Get("/{id}", h.Get)
		r.With(middleware.Authorize(policy.OpOrderStatus)).Patch("/{id}/status", h.UpdateStatus)
		r.With(middleware.Authorize(policy.OpBillRead)).Get("/{id}/bill", h.Bill)
		r.With(middleware.Authorize(policy.OpBillRead)).Get("/{id}/invoice", h.Invoice)
	})
	r.With(middleware.Authorize(policy.OpOrderItemStatus)).Patch("/order-items/{id}/status", h.UpdateItemStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID string                   `json:"table_id"`
	Notes   string                   `json:"notes"`
	Items   []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Portion    string `json:"portion"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	RestaurantID  uuid.UUID           `json:"restaurant_id"`
	TableID       uuid.UUID           `json:"table_id"`
	CreatedBy     uuid.UUID           `json:"created_by"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	TotalAmount   string              `json:"total_amount"`
	TipAmount     string              `json:"tip_amount"`
	Notes         *string             `json:"notes"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	CompletedAt   *time.Time          `json:"completed_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	ItemName   string    `json:"item_name"`
	Portion    string    `json:"portion"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
	Status     string    `json:"status"`
	Notes      *string   `json:"notes"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type billResponse struct {
	OrderID    uuid.UUID           `json:"order_id"`
	Items      []orderItemResponse `json:"items"`
	Subtotal   string              `json:"subtotal"`
	TaxRate    string              `json:"tax_rate"`
	Tax        string              `json:"tax"`
	Total      string              `json:"total"`
	Tip        string              `json:"tip"`
	FinalTotal string              `json:"final_total"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "menu_item_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			MenuItemID: item.MenuItemID,
			Portion:    item.Portion,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}

	detail, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		RestaurantID: claims.RestaurantID,
		TableID:      tableID,
		CreatedBy:    claims.UserID,
		Notes:        req.Notes,
		Items:        svcItems,
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDetailResponse(detail))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.svc.ListOrders(r.Context(), service.ListOrdersRequest{
		RestaurantID: claims.RestaurantID,
		Status:       r.URL.Query().Get("status"),
		Limit:        int32(limit),
		Offset:       int32(offset),
	})
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), claims.RestaurantID, orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.AdvanceOrderStatus(r.Context(), claims.RestaurantID, orderID, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateItemStatus handles PATCH /order-items/{id}/status.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order item ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	item, err := h.svc.AdvanceItemStatus(r.Context(), claims.RestaurantID, itemID, req.Status)
	if err != nil {
		writeServiceError(w, "update order item status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderItemResponse(item))
}

// Bill handles GET /orders/{id}/bill.
func (h *OrderHandler) Bill(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	res, err := h.svc.GetBill(r.Context(), claims.RestaurantID, orderID)
	if err != nil {
		writeServiceError(w, "get bill", err)
		return
	}

	items := make([]orderItemResponse, len(res.Items))
	for i, it := range res.Items {
		items[i] = toOrderItemResponse(it)
	}

	writeJSON(w, http.StatusOK, billResponse{
		OrderID:    res.Order.ID,
		Items:      items,
		Subtotal:   res.Bill.Subtotal.StringFixed(2),
		TaxRate:    res.Bill.TaxRate.String(),
		Tax:        res.Bill.Tax.StringFixed(2),
		Total:      res.Bill.Total.StringFixed(2),
		Tip:        res.Tip.StringFixed(2),
		FinalTotal: res.FinalTotal.StringFixed(2),
	})
}

// Invoice handles GET /orders/{id}/invoice. The HTML invoice is returned
// unless ?format=text is given.
func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	rec, err := h.svc.Invoice(r.Context(), claims.RestaurantID, orderID)
	if err != nil {
		writeServiceError(w, "invoice", err)
		return
	}

	html, text, err := receipt.Render(rec)
	if err != nil {
		log.Printf("ERROR: render invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(text)) //nolint:errcheck
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html)) //nolint:errcheck
}

// --- Helpers ---

// requireClaims returns the caller's capability or writes a 401.
func requireClaims(w http.ResponseWriter, r *http.Request) *auth.Claims {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	}
	return claims
}

func formatItemError(idx int, msg string) string {
	return fmt.Sprintf("items[%d]: %s", idx, msg)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func optionalString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		RestaurantID:  o.RestaurantID,
		TableID:       o.TableID,
		CreatedBy:     o.CreatedBy,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   numericToString(o.TotalAmount),
		TipAmount:     numericToString(o.TipAmount),
		Notes:         optionalString(o.Notes),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.CompletedAt.Valid {
		t := o.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func toOrderDetailResponse(d *service.OrderDetail) orderResponse {
	resp := toOrderResponse(d.Order)
	resp.Items = make([]orderItemResponse, len(d.Items))
	for i, it := range d.Items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	return resp
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	unit, _ := decimal.NewFromString(numericToString(it.UnitPrice))
	return orderItemResponse{
		ID:         it.ID,
		OrderID:    it.OrderID,
		MenuItemID: it.MenuItemID,
		ItemName:   it.ItemName,
		Portion:    it.Portion,
		Quantity:   it.Quantity,
		UnitPrice:  unit.StringFixed(2),
		Subtotal:   unit.Mul(decimal.NewFromInt32(it.Quantity)).StringFixed(2),
		Status:     it.Status,
		Notes:      optionalString(it.Notes),
	}
}
