package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/policy"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.ListTablesRow, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.DiningTable, error)
}

// TableStatusSetter changes a table's status under the table row lock.
// Satisfied by *service.OrderService.
type TableStatusSetter interface {
	SetTableStatus(ctx context.Context, restaurantID, tableID uuid.UUID, status string) (database.DiningTable, error)
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	store  TableStore
	status TableStatusSetter
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, status TableStatusSetter) *TableHandler {
	return &TableHandler{store: store, status: status}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Route("/tables", func(r chi.Router) {
		r.With(middleware.Authorize(policy.OpTableRead)).Get("/", h.List)
		r.With(middleware.Authorize(policy.OpTableWrite)).Post("/", h.Create)
		r.With(middleware.Authorize(policy.OpTableWrite)).Patch("/{id}/status", h.UpdateStatus)
	})
}

// --- Request / Response types ---

type createTableRequest struct {
	TableNumber int32 `json:"table_number"`
	Capacity    int32 `json:"capacity"`
}

type tableResponse struct {
	ID                uuid.UUID  `json:"id"`
	TableNumber       int32      `json:"table_number"`
	Capacity          int32      `json:"capacity"`
	Status            string     `json:"status"`
	ActiveOrderID     *uuid.UUID `json:"active_order_id"`
	ActiveOrderStatus *string    `json:"active_order_status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// --- Handlers ---

// List handles GET /tables. Each table carries its active order, if any.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	rows, err := h.store.ListTables(r.Context(), claims.RestaurantID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(rows))
	for i, t := range rows {
		resp[i] = tableResponse{
			ID:                t.ID,
			TableNumber:       t.TableNumber,
			Capacity:          t.Capacity,
			Status:            t.Status,
			ActiveOrderStatus: optionalString(t.ActiveOrderStatus),
			CreatedAt:         t.CreatedAt,
			UpdatedAt:         t.UpdatedAt,
		}
		if t.ActiveOrderID.Valid {
			id := uuid.UUID(t.ActiveOrderID.Bytes)
			resp[i].ActiveOrderID = &id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableNumber <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number must be > 0"})
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = 4
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		RestaurantID: claims.RestaurantID,
		TableNumber:  req.TableNumber,
		Capacity:     req.Capacity,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table number already exists"})
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// UpdateStatus handles PATCH /tables/{id}/status. Only available and
// reserved can be set by hand; occupancy follows the orders.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.status.SetTableStatus(r.Context(), claims.RestaurantID, tableID, req.Status)
	if err != nil {
		writeServiceError(w, "set table status", err)
		return
	}

	writeJSON(w, http.StatusOK, toTableResponse(updated))
}

func toTableResponse(t database.DiningTable) tableResponse {
	return tableResponse{
		ID:          t.ID,
		TableNumber: t.TableNumber,
		Capacity:    t.Capacity,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
