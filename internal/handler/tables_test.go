package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/handler"
	"github.com/tablepos/api/internal/service"
)

// --- Mock TableStore ---

type mockTableStore struct {
	tables      map[uuid.UUID]database.DiningTable
	activeOrder map[uuid.UUID]database.Order
	createErr   error
	created     []database.CreateTableParams
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{
		tables:      make(map[uuid.UUID]database.DiningTable),
		activeOrder: make(map[uuid.UUID]database.Order),
	}
}

func (m *mockTableStore) addTable(restaurantID uuid.UUID, number int32, status string) database.DiningTable {
	t := database.DiningTable{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		TableNumber:  number,
		Capacity:     4,
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.tables[t.ID] = t
	return t
}

func (m *mockTableStore) ListTables(_ context.Context, restaurantID uuid.UUID) ([]database.ListTablesRow, error) {
	var rows []database.ListTablesRow
	for _, t := range m.tables {
		if t.RestaurantID != restaurantID {
			continue
		}
		row := database.ListTablesRow{
			ID:           t.ID,
			RestaurantID: t.RestaurantID,
			TableNumber:  t.TableNumber,
			Capacity:     t.Capacity,
			Status:       t.Status,
		}
		if o, ok := m.activeOrder[t.ID]; ok {
			row.ActiveOrderID = pgtype.UUID{Bytes: o.ID, Valid: true}
			row.ActiveOrderStatus = pgtype.Text{String: o.Status, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.DiningTable, error) {
	if m.createErr != nil {
		return database.DiningTable{}, m.createErr
	}
	m.created = append(m.created, arg)
	return m.addTable(arg.RestaurantID, arg.TableNumber, "available"), nil
}

// mockTableStatusSetter mirrors the service rules over the same maps as
// mockTableStore.
type mockTableStatusSetter struct {
	store *mockTableStore
	err   error
}

func (m *mockTableStatusSetter) SetTableStatus(_ context.Context, restaurantID, tableID uuid.UUID, status string) (database.DiningTable, error) {
	if m.err != nil {
		return database.DiningTable{}, m.err
	}
	if status != "available" && status != "reserved" {
		return database.DiningTable{}, service.ErrInvalidTableStatus
	}
	t, ok := m.store.tables[tableID]
	if !ok || t.RestaurantID != restaurantID {
		return database.DiningTable{}, service.ErrTableNotFound
	}
	if _, busy := m.store.activeOrder[tableID]; busy {
		return database.DiningTable{}, service.ErrTableOccupied
	}
	t.Status = status
	m.store.tables[tableID] = t
	return t, nil
}

func newTableHandler(store *mockTableStore) *handler.TableHandler {
	return handler.NewTableHandler(store, &mockTableStatusSetter{store: store})
}

func TestListTables_ShowsActiveOrder(t *testing.T) {
	claims := testClaims("waiter")
	store := newMockTableStore()
	busy := store.addTable(claims.RestaurantID, 1, "occupied")
	store.addTable(claims.RestaurantID, 2, "available")
	order := testOrder(claims.RestaurantID, "preparing")
	store.activeOrder[busy.ID] = order

	router := newTestRouter(newTableHandler(store))
	rr := doAuthRequest(t, router, "GET", "/tables", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []struct {
		TableNumber       int32      `json:"table_number"`
		ActiveOrderID     *uuid.UUID `json:"active_order_id"`
		ActiveOrderStatus *string    `json:"active_order_status"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp) != 2 {
		t.Fatalf("tables: got %d, want 2", len(resp))
	}
	for _, tbl := range resp {
		switch tbl.TableNumber {
		case 1:
			if tbl.ActiveOrderID == nil || *tbl.ActiveOrderID != order.ID || *tbl.ActiveOrderStatus != "preparing" {
				t.Errorf("table 1: got %+v", tbl)
			}
		case 2:
			if tbl.ActiveOrderID != nil || tbl.ActiveOrderStatus != nil {
				t.Errorf("table 2 should be free: got %+v", tbl)
			}
		}
	}
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		name      string
		role      string
		body      map[string]int
		createErr error
		status    int
	}{
		{"created", "manager", map[string]int{"table_number": 7, "capacity": 6}, nil, http.StatusCreated},
		{"default capacity", "admin", map[string]int{"table_number": 8}, nil, http.StatusCreated},
		{"bad number", "manager", map[string]int{"table_number": 0}, nil, http.StatusBadRequest},
		{"duplicate", "manager", map[string]int{"table_number": 1}, &pgconn.PgError{Code: "23505"}, http.StatusConflict},
		{"waiter forbidden", "waiter", map[string]int{"table_number": 9}, nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockTableStore()
			store.createErr = tt.createErr
			router := newTestRouter(newTableHandler(store))

			rr := doAuthRequest(t, router, "POST", "/tables", tt.body, testClaims(tt.role))
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, tt.status, rr.Body.String())
			}
			if tt.status == http.StatusCreated {
				want := int32(tt.body["capacity"])
				if want == 0 {
					want = 4
				}
				if store.created[0].Capacity != want {
					t.Errorf("capacity: got %d, want %d", store.created[0].Capacity, want)
				}
			}
		})
	}
}

func TestUpdateTableStatus(t *testing.T) {
	claims := testClaims("manager")
	store := newMockTableStore()
	free := store.addTable(claims.RestaurantID, 1, "available")
	busy := store.addTable(claims.RestaurantID, 2, "occupied")
	store.activeOrder[busy.ID] = testOrder(claims.RestaurantID, "pending")
	router := newTestRouter(newTableHandler(store))

	tests := []struct {
		name    string
		tableID uuid.UUID
		status  string
		want    int
	}{
		{"reserve free table", free.ID, "reserved", http.StatusOK},
		{"busy table", busy.ID, "reserved", http.StatusConflict},
		{"occupied is not manual", free.ID, "occupied", http.StatusBadRequest},
		{"unknown table", uuid.New(), "available", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, "PATCH", "/tables/"+tt.tableID.String()+"/status", map[string]string{"status": tt.status}, claims)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d (body: %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	if store.tables[free.ID].Status != "reserved" {
		t.Errorf("free table status: got %q, want reserved", store.tables[free.ID].Status)
	}
}

func TestUpdateTableStatus_ServiceFailure(t *testing.T) {
	claims := testClaims("admin")
	store := newMockTableStore()
	table := store.addTable(claims.RestaurantID, 1, "available")
	router := newTestRouter(handler.NewTableHandler(store, &mockTableStatusSetter{store: store, err: errors.New("connection reset")}))

	rr := doAuthRequest(t, router, "PATCH", "/tables/"+table.ID.String()+"/status", map[string]string{"status": "reserved"}, claims)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if got := errorBody(t, rr); got != "internal server error" {
		t.Errorf("error: got %q", got)
	}
}

func TestUpdateTableStatus_WaiterForbidden(t *testing.T) {
	claims := testClaims("waiter")
	store := newMockTableStore()
	table := store.addTable(claims.RestaurantID, 1, "available")
	router := newTestRouter(newTableHandler(store))

	rr := doAuthRequest(t, router, "PATCH", "/tables/"+table.ID.String()+"/status", map[string]string{"status": "reserved"}, claims)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
