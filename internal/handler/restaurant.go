package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/policy"
)

// RestaurantStore defines the database methods needed by restaurant handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	UpdateRestaurant(ctx context.Context, arg database.UpdateRestaurantParams) (database.Restaurant, error)
}

// RestaurantHandler serves the caller's restaurant profile.
type RestaurantHandler struct {
	store RestaurantStore
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(store RestaurantStore) *RestaurantHandler {
	return &RestaurantHandler{store: store}
}

// RegisterRoutes registers restaurant endpoints on the given Chi router.
func (h *RestaurantHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.Authorize(policy.OpRestaurantRead)).Get("/restaurant", h.Get)
	r.With(middleware.Authorize(policy.OpRestaurantWrite)).Put("/restaurant", h.Update)
}

type updateRestaurantRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	TaxRate string `json:"tax_rate"`
}

type restaurantResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Phone    string    `json:"phone"`
	TaxRate  string    `json:"tax_rate"`
	Currency string    `json:"currency"`
}

// Get handles GET /restaurant.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	rest, err := h.store.GetRestaurant(r.Context(), claims.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: get restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toRestaurantResponse(rest))
}

// Update handles PUT /restaurant. tax_rate is a percentage in [0, 100].
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var req updateRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	rate, err := decimal.NewFromString(req.TaxRate)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_rate must be between 0 and 100"})
		return
	}

	rest, err := h.store.UpdateRestaurant(r.Context(), database.UpdateRestaurantParams{
		ID:      claims.RestaurantID,
		Name:    strings.TrimSpace(req.Name),
		Address: req.Address,
		Phone:   req.Phone,
		TaxRate: decimalToNumeric(rate),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: update restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toRestaurantResponse(rest))
}

func toRestaurantResponse(r database.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:       r.ID,
		Name:     r.Name,
		Address:  r.Address,
		Phone:    r.Phone,
		TaxRate:  numericToString(r.TaxRate),
		Currency: r.Currency,
	}
}
