package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/auth"
	"github.com/tablepos/api/internal/billing"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/handler"
	"github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/receipt"
	"github.com/tablepos/api/internal/service"
)

const testJWTSecret = "test-jwt-secret"

// --- Mock OrderServicer ---

type mockOrderService struct {
	createFn      func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	advanceFn     func(ctx context.Context, restaurantID, orderID uuid.UUID, status string) (database.Order, error)
	advanceItemFn func(ctx context.Context, restaurantID, itemID uuid.UUID, status string) (database.OrderItem, error)
	getFn         func(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.OrderDetail, error)
	listFn        func(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
	billFn        func(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.BillResult, error)
	invoiceFn     func(ctx context.Context, restaurantID, orderID uuid.UUID) (receipt.Receipt, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) AdvanceOrderStatus(ctx context.Context, restaurantID, orderID uuid.UUID, status string) (database.Order, error) {
	return m.advanceFn(ctx, restaurantID, orderID, status)
}

func (m *mockOrderService) AdvanceItemStatus(ctx context.Context, restaurantID, itemID uuid.UUID, status string) (database.OrderItem, error) {
	return m.advanceItemFn(ctx, restaurantID, itemID, status)
}

func (m *mockOrderService) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.OrderDetail, error) {
	return m.getFn(ctx, restaurantID, orderID)
}

func (m *mockOrderService) ListOrders(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, req)
	}
	return []database.Order{}, nil
}

func (m *mockOrderService) GetBill(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.BillResult, error) {
	return m.billFn(ctx, restaurantID, orderID)
}

func (m *mockOrderService) Invoice(ctx context.Context, restaurantID, orderID uuid.UUID) (receipt.Receipt, error) {
	return m.invoiceFn(ctx, restaurantID, orderID)
}

// --- Helpers ---

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// newTestRouter mounts h behind the real authentication middleware, the
// same way the production router does.
func newTestRouter(h routeRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	h.RegisterRoutes(r)
	return r
}

func testClaims(role string) *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), RestaurantID: uuid.New(), Role: role}
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	return doRawRequest(t, router, method, path, b, "application/json", claims)
}

func doRawRequest(t *testing.T, router http.Handler, method, path string, body []byte, contentType string, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.RestaurantID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	return resp["error"]
}

func testNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		panic(err)
	}
	return n
}

func testOrder(restaurantID uuid.UUID, status string) database.Order {
	now := time.Now()
	return database.Order{
		ID:            uuid.New(),
		RestaurantID:  restaurantID,
		TableID:       uuid.New(),
		CreatedBy:     uuid.New(),
		Status:        status,
		PaymentStatus: "unpaid",
		TotalAmount:   testNumeric("240"),
		TipAmount:     testNumeric("0"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// --- Create ---

func TestCreateOrder_Success(t *testing.T) {
	claims := testClaims("waiter")
	tableID := uuid.New()
	menuItemID := uuid.New()

	svc := &mockOrderService{
		createFn: func(_ context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error) {
			if req.RestaurantID != claims.RestaurantID {
				t.Errorf("restaurant: got %v, want %v", req.RestaurantID, claims.RestaurantID)
			}
			if req.CreatedBy != claims.UserID {
				t.Errorf("created_by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			if req.TableID != tableID {
				t.Errorf("table: got %v, want %v", req.TableID, tableID)
			}
			if len(req.Items) != 1 || req.Items[0].Portion != "half" || req.Items[0].Quantity != 2 {
				t.Errorf("items: got %+v", req.Items)
			}

			order := testOrder(req.RestaurantID, "pending")
			order.TableID = req.TableID
			return &service.OrderDetail{
				Order: order,
				Items: []database.OrderItem{{
					ID:         uuid.New(),
					OrderID:    order.ID,
					MenuItemID: menuItemID,
					ItemName:   "Paneer Tikka",
					Portion:    "half",
					Quantity:   2,
					UnitPrice:  testNumeric("120"),
					Status:     "pending",
				}},
			}, nil
		},
	}
	router := newTestRouter(handler.NewOrderHandler(svc))

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"table_id": tableID.String(),
		"items": []map[string]interface{}{
			{"menu_item_id": menuItemID.String(), "portion": "half", "quantity": 2},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		Status      string `json:"status"`
		TotalAmount string `json:"total_amount"`
		Items       []struct {
			UnitPrice string `json:"unit_price"`
			Subtotal  string `json:"subtotal"`
		} `json:"items"`
	}
	decodeJSON(t, rr, &resp)

	if resp.Status != "pending" {
		t.Errorf("status: got %q, want pending", resp.Status)
	}
	if resp.TotalAmount != "240.00" {
		t.Errorf("total: got %q, want 240.00", resp.TotalAmount)
	}
	if len(resp.Items) != 1 || resp.Items[0].UnitPrice != "120.00" || resp.Items[0].Subtotal != "240.00" {
		t.Errorf("items: got %+v", resp.Items)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	tableID := uuid.New().String()
	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{
			name: "invalid table",
			body: map[string]interface{}{"table_id": "nope", "items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 1}}},
			want: "invalid table_id",
		},
		{
			name: "no items",
			body: map[string]interface{}{"table_id": tableID},
			want: "items are required",
		},
		{
			name: "missing menu item",
			body: map[string]interface{}{"table_id": tableID, "items": []map[string]interface{}{{"quantity": 1}}},
			want: "items[0]: menu_item_id is required",
		},
		{
			name: "zero quantity",
			body: map[string]interface{}{"table_id": tableID, "items": []map[string]interface{}{
				{"menu_item_id": uuid.New().String(), "quantity": 1},
				{"menu_item_id": uuid.New().String(), "quantity": 0},
			}},
			want: "items[1]: quantity must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(context.Context, service.CreateOrderRequest) (*service.OrderDetail, error) {
					t.Fatal("service should not be called")
					return nil, nil
				},
			}
			router := newTestRouter(handler.NewOrderHandler(svc))

			rr := doAuthRequest(t, router, "POST", "/orders", tt.body, testClaims("waiter"))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if got := errorBody(t, rr); got != tt.want {
				t.Errorf("error: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateOrder_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"occupied", service.ErrTableOccupied, http.StatusConflict, service.ErrTableOccupied.Error()},
		{"table missing", service.ErrTableNotFound, http.StatusNotFound, service.ErrTableNotFound.Error()},
		{"portion", service.ErrPortionUnavailable, http.StatusBadRequest, service.ErrPortionUnavailable.Error()},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(context.Context, service.CreateOrderRequest) (*service.OrderDetail, error) {
					return nil, tt.err
				},
			}
			router := newTestRouter(handler.NewOrderHandler(svc))

			rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
				"table_id": uuid.New().String(),
				"items":    []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 1}},
			}, testClaims("waiter"))

			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			if got := errorBody(t, rr); got != tt.msg {
				t.Errorf("error: got %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestCreateOrder_ChefForbidden(t *testing.T) {
	router := newTestRouter(handler.NewOrderHandler(&mockOrderService{}))

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{}, testClaims("chef"))
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestOrders_RequireToken(t *testing.T) {
	router := newTestRouter(handler.NewOrderHandler(&mockOrderService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// --- List / Get ---

func TestListOrders_ClampsLimit(t *testing.T) {
	claims := testClaims("manager")
	var got service.ListOrdersRequest
	svc := &mockOrderService{
		listFn: func(_ context.Context, req service.ListOrdersRequest) ([]database.Order, error) {
			got = req
			return []database.Order{testOrder(req.RestaurantID, "served")}, nil
		},
	}
	router := newTestRouter(handler.NewOrderHandler(svc))

	rr := doAuthRequest(t, router, "GET", "/orders?status=served&limit=500&offset=20", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got.Limit != 100 || got.Offset != 20 || got.Status != "served" || got.RestaurantID != claims.RestaurantID {
		t.Errorf("request: got %+v", got)
	}

	var resp struct {
		Orders []json.RawMessage `json:"orders"`
		Limit  int               `json:"limit"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Orders) != 1 || resp.Limit != 100 {
		t.Errorf("response: got %d orders, limit %d", len(resp.Orders), resp.Limit)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(context.Context, uuid.UUID, uuid.UUID) (*service.OrderDetail, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	router := newTestRouter(handler.NewOrderHandler(svc))

	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String(), nil, testClaims("chef"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	router := newTestRouter(handler.NewOrderHandler(&mockOrderService{}))

	rr := doAuthRequest(t, router, "GET", "/orders/not-a-uuid", nil, testClaims("waiter"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Status ---

func TestUpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"advanced", nil, http.StatusOK},
		{"backwards", service.ErrInvalidTransition, http.StatusConflict},
		{"unknown status", service.ErrInvalidOrderStatus, http.StatusBadRequest},
		{"completed", service.ErrOrderCompleted, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := testClaims("waiter")
			orderID := uuid.New()
			svc := &mockOrderService{
				advanceFn: func(_ context.Context, restaurantID, id uuid.UUID, status string) (database.Order, error) {
					if restaurantID != claims.RestaurantID || id != orderID || status != "served" {
						t.Errorf("args: got %v %v %q", restaurantID, id, status)
					}
					if tt.err != nil {
						return database.Order{}, tt.err
					}
					o := testOrder(restaurantID, status)
					o.ID = id
					return o, nil
				},
			}
			router := newTestRouter(handler.NewOrderHandler(svc))

			rr := doAuthRequest(t, router, "PATCH", "/orders/"+orderID.String()+"/status", map[string]string{"status": "served"}, claims)
			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d (body: %s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestUpdateOrderStatus_MissingStatus(t *testing.T) {
	router := newTestRouter(handler.NewOrderHandler(&mockOrderService{}))

	rr := doAuthRequest(t, router, "PATCH", "/orders/"+uuid.New().String()+"/status", map[string]string{}, testClaims("waiter"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateItemStatus_KitchenOnly(t *testing.T) {
	itemID := uuid.New()
	svc := &mockOrderService{
		advanceItemFn: func(_ context.Context, _ uuid.UUID, id uuid.UUID, status string) (database.OrderItem, error) {
			return database.OrderItem{ID: id, ItemName: "Dal Makhani", Quantity: 1, UnitPrice: testNumeric("180"), Status: status}, nil
		},
	}
	router := newTestRouter(handler.NewOrderHandler(svc))
	path := "/order-items/" + itemID.String() + "/status"

	rr := doAuthRequest(t, router, "PATCH", path, map[string]string{"status": "preparing"}, testClaims("chef"))
	if rr.Code != http.StatusOK {
		t.Fatalf("chef status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp struct {
		Status string `json:"status"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "preparing" {
		t.Errorf("item status: got %q, want preparing", resp.Status)
	}

	rr = doAuthRequest(t, router, "PATCH", path, map[string]string{"status": "preparing"}, testClaims("waiter"))
	if rr.Code != http.StatusForbidden {
		t.Errorf("waiter status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// --- Bill / Invoice ---

func TestGetBill(t *testing.T) {
	svc := &mockOrderService{
		billFn: func(_ context.Context, restaurantID, orderID uuid.UUID) (*service.BillResult, error) {
			bill, err := billing.ComputeBill(decimal.NewFromInt(500), decimal.NewFromInt(5))
			if err != nil {
				t.Fatalf("compute bill: %v", err)
			}
			o := testOrder(restaurantID, "served")
			o.ID = orderID
			return &service.BillResult{
				Order: o,
				Items: []database.OrderItem{
					{ItemName: "Biryani", Quantity: 2, UnitPrice: testNumeric("250")},
				},
				Bill:       bill,
				Tip:        decimal.NewFromInt(50),
				FinalTotal: bill.WithTip(decimal.NewFromInt(50)),
			}, nil
		},
	}
	router := newTestRouter(handler.NewOrderHandler(svc))

	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String()+"/bill", nil, testClaims("waiter"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	want := map[string]string{
		"subtotal":    "500.00",
		"tax_rate":    "5",
		"tax":         "25.00",
		"total":       "525.00",
		"tip":         "50.00",
		"final_total": "575.00",
	}
	for k, v := range want {
		if resp[k] != v {
			t.Errorf("%s: got %v, want %s", k, resp[k], v)
		}
	}
}

func TestGetBill_ChefForbidden(t *testing.T) {
	router := newTestRouter(handler.NewOrderHandler(&mockOrderService{}))

	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String()+"/bill", nil, testClaims("chef"))
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestInvoice_Formats(t *testing.T) {
	svc := &mockOrderService{
		invoiceFn: func(_ context.Context, _ uuid.UUID, orderID uuid.UUID) (receipt.Receipt, error) {
			bill, _ := billing.ComputeBill(decimal.NewFromInt(100), decimal.NewFromInt(15))
			return receipt.Receipt{
				OrderID:     orderID,
				Restaurant:  receipt.Restaurant{Name: "Spice Route", Currency: "inr"},
				TableNumber: 4,
				Items:       []receipt.Item{{Name: "Samosa", Portion: "full", Quantity: 2, UnitPrice: decimal.NewFromInt(50)}},
				Bill:        bill,
				Date:        time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newTestRouter(handler.NewOrderHandler(svc))
	path := "/orders/" + uuid.New().String() + "/invoice"

	rr := doAuthRequest(t, router, "GET", path, nil, testClaims("manager"))
	if rr.Code != http.StatusOK {
		t.Fatalf("html status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html content type: got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<h1>Spice Route</h1>") {
		t.Errorf("html body missing restaurant name:\n%s", rr.Body.String())
	}

	rr = doAuthRequest(t, router, "GET", path+"?format=text", nil, testClaims("manager"))
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("text content type: got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Invoice #") || !strings.Contains(body, "Samosa") {
		t.Errorf("text body:\n%s", body)
	}
}
