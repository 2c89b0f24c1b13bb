package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/menuimport"
	"github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/policy"
	"github.com/tablepos/api/internal/service"
)

const maxMenuUpload = 10 << 20

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, arg database.DeleteMenuItemParams) (uuid.UUID, error)
}

// NewMenuStore creates a MenuStore from a DBTX (pool or tx).
type NewMenuStore func(db database.DBTX) MenuStore

// MenuHandler handles menu catalog endpoints.
type MenuHandler struct {
	store     MenuStore
	pool      service.TxBeginner
	newStore  NewMenuStore
	extractor menuimport.TextExtractor
}

// NewMenuHandler creates a new MenuHandler. extractor may be nil, in which
// case only plain-text imports are accepted.
func NewMenuHandler(store MenuStore, pool service.TxBeginner, newStore NewMenuStore, extractor menuimport.TextExtractor) *MenuHandler {
	return &MenuHandler{store: store, pool: pool, newStore: newStore, extractor: extractor}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Route("/menu", func(r chi.Router) {
		r.With(middleware.Authorize(policy.OpMenuRead)).Get("/", h.List)
		r.With(middleware.Authorize(policy.OpMenuWrite)).Post("/", h.Create)
		r.With(middleware.Authorize(policy.OpMenuImport)).Post("/import", h.Import)
		r.With(middleware.Authorize(policy.OpMenuWrite)).Put("/{id}", h.Update)
		r.With(middleware.Authorize(policy.OpMenuWrite)).Delete("/{id}", h.Delete)
	})
}

// --- Request / Response types ---

type menuItemRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	HalfPrice   string `json:"half_price"`
	FullPrice   string `json:"full_price"`
	Available   *bool  `json:"available"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	HalfPrice   *string   `json:"half_price"`
	FullPrice   string    `json:"full_price"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type menuImportRequest struct {
	Text   string `json:"text"`
	Commit bool   `json:"commit"`
}

type menuImportResponse struct {
	Items    []menuimport.Candidate `json:"items"`
	Warnings []string               `json:"warnings"`
	Created  []menuItemResponse     `json:"created,omitempty"`
	Skipped  []string               `json:"skipped,omitempty"`
}

// --- Handlers ---

// List handles GET /menu.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	items, err := h.store.ListMenuItems(r.Context(), claims.RestaurantID)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, it := range items {
		resp[i] = toMenuItemResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, msg := req.toParams()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		RestaurantID: claims.RestaurantID,
		Name:         params.Name,
		Category:     params.Category,
		Description:  params.Description,
		HalfPrice:    params.HalfPrice,
		FullPrice:    params.FullPrice,
		Available:    params.Available,
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update handles PUT /menu/{id}. Prices of existing orders are snapshots and
// do not change.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, msg := req.toParams()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	params.ID = itemID
	params.RestaurantID = claims.RestaurantID

	item, err := h.store.UpdateMenuItem(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete handles DELETE /menu/{id}. Items referenced by past orders cannot
// be deleted; mark them unavailable instead.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	_, err = h.store.DeleteMenuItem(r.Context(), database.DeleteMenuItemParams{
		ID:           itemID,
		RestaurantID: claims.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "menu item is referenced by orders; mark it unavailable instead"})
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /menu/import. A JSON body carries the menu text; a
// PDF body is run through the text extractor when one is configured. With
// commit set, parsed items whose normalized name is not on the menu yet
// are created at their full price in one transaction.
func (h *MenuHandler) Import(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var req menuImportRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/pdf") {
		if h.extractor == nil {
			writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "pdf import is not available; send the menu text instead"})
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxMenuUpload))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		doc, err := h.extractor.ExtractText(r.Context(), data)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read pdf: " + err.Error()})
			return
		}
		req.Text = doc.Text
		req.Commit = r.URL.Query().Get("commit") == "true"
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	result := menuimport.Parse(req.Text)
	resp := menuImportResponse{Items: result.Items, Warnings: result.Warnings}
	if resp.Items == nil {
		resp.Items = []menuimport.Candidate{}
	}
	if !req.Commit {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// The whole import commits or nothing does.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: import menu: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	existing, err := txStore.ListMenuItems(r.Context(), claims.RestaurantID)
	if err != nil {
		log.Printf("ERROR: import menu: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	seen := make(map[string]bool, len(existing))
	for _, it := range existing {
		seen[menuimport.NormalizeName(it.Name)] = true
	}

	for _, c := range result.Items {
		key := menuimport.NormalizeName(c.Name)
		if seen[key] {
			resp.Skipped = append(resp.Skipped, c.Name)
			continue
		}
		seen[key] = true

		item, err := txStore.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
			RestaurantID: claims.RestaurantID,
			Name:         c.Name,
			Category:     c.Category,
			Description:  textOrNull(c.Description),
			FullPrice:    decimalToNumeric(c.Price),
			Available:    true,
		})
		if err != nil {
			log.Printf("ERROR: import menu: create %q: %v", c.Name, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Created = append(resp.Created, toMenuItemResponse(item))
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: import menu: commit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// --- Helpers ---

// toParams validates the request. It returns a non-empty message on bad
// input.
func (req menuItemRequest) toParams() (database.UpdateMenuItemParams, string) {
	if strings.TrimSpace(req.Name) == "" {
		return database.UpdateMenuItemParams{}, "name is required"
	}
	full, err := decimal.NewFromString(req.FullPrice)
	if err != nil || !full.IsPositive() {
		return database.UpdateMenuItemParams{}, "full_price must be positive"
	}

	half := pgtype.Numeric{}
	if req.HalfPrice != "" {
		d, err := decimal.NewFromString(req.HalfPrice)
		if err != nil || !d.IsPositive() {
			return database.UpdateMenuItemParams{}, "half_price must be positive"
		}
		half = decimalToNumeric(d)
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = menuimport.DetectCategory(req.Name, req.Description)
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	return database.UpdateMenuItemParams{
		Name:        strings.TrimSpace(req.Name),
		Category:    category,
		Description: textOrNull(req.Description),
		HalfPrice:   half,
		FullPrice:   decimalToNumeric(full),
		Available:   available,
	}, ""
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toMenuItemResponse(it database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Category:    it.Category,
		Description: optionalString(it.Description),
		FullPrice:   numericToString(it.FullPrice),
		Available:   it.Available,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
	if it.HalfPrice.Valid {
		s := numericToString(it.HalfPrice)
		resp.HalfPrice = &s
	}
	return resp
}
