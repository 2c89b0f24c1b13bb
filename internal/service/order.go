package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/billing"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/enum"
	"github.com/tablepos/api/internal/receipt"
)

// activeOrderConstraint is the partial unique index allowing one
// non-completed order per table.
const activeOrderConstraint = "orders_one_active_per_table"

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ReceiptSource
	GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.DiningTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for opening an order on a table.
type CreateOrderRequest struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	CreatedBy    uuid.UUID
	Notes        string
	Items        []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order. Portion defaults to
// full.
type CreateOrderItemRequest struct {
	MenuItemID string
	Portion    string
	Quantity   int32
	Notes      string
}

// OrderDetail is an order with its items.
type OrderDetail struct {
	Order database.Order
	Items []database.OrderItem
}

// BillResult is the bill of an order plus any tip already recorded.
type BillResult struct {
	Order      database.Order
	Items      []database.OrderItem
	Bill       billing.Bill
	Tip        decimal.Decimal
	FinalTotal decimal.Decimal
}

// ListOrdersRequest filters the order history.
type ListOrdersRequest struct {
	RestaurantID uuid.UUID
	Status       string
	Limit        int32
	Offset       int32
}

// OrderService handles the order and table state machine.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	events   EventPublisher
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, events EventPublisher) *OrderService {
	if events == nil {
		events = nopPublisher{}
	}
	return &OrderService{pool: pool, store: store, newStore: newStore, events: events}
}

// CreateOrder opens an order on a table. The table row is locked for the
// duration of the transaction so two waiters cannot seat the same table.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	// --- Validate input before touching the database ---
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	menuIDs := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.Portion != "" && !enum.IsPortion(item.Portion) {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidPortion)
		}
		id, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		menuIDs[i] = id
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Lock the table and check occupancy ---
	table, err := store.GetTableForUpdate(ctx, database.GetTableForUpdateParams{
		ID:           req.TableID,
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, persistenceErr("lock table", err)
	}

	if _, err := store.GetActiveOrderByTable(ctx, table.ID); err == nil {
		return nil, ErrTableOccupied
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, persistenceErr("get active order", err)
	}

	// --- Snapshot prices from the menu ---
	lines := make([]billing.Line, len(req.Items))
	params := make([]database.CreateOrderItemParams, len(req.Items))
	for i, item := range req.Items {
		menuItem, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:           menuIDs[i],
			RestaurantID: req.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, persistenceErr("get menu item", err)
		}
		if !menuItem.Available {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemUnavailable)
		}

		portion := item.Portion
		if portion == "" {
			portion = enum.PortionFull
		}
		price := menuItem.FullPrice
		if portion == enum.PortionHalf {
			price = menuItem.HalfPrice
		}
		if !price.Valid {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrPortionUnavailable)
		}

		lines[i] = billing.Line{UnitPrice: numericToDecimal(price), Quantity: item.Quantity}
		params[i] = database.CreateOrderItemParams{
			MenuItemID: menuItem.ID,
			ItemName:   menuItem.Name,
			Portion:    portion,
			Quantity:   item.Quantity,
			UnitPrice:  price,
			Notes:      optText(item.Notes),
		}
	}

	// --- Insert order and items ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		RestaurantID: req.RestaurantID,
		TableID:      table.ID,
		CreatedBy:    req.CreatedBy,
		TotalAmount:  decimalToNumeric(billing.Subtotal(lines)),
		Notes:        optText(req.Notes),
	})
	if err != nil {
		if isUniqueViolation(err, activeOrderConstraint) {
			return nil, ErrTableOccupied
		}
		return nil, persistenceErr("create order", err)
	}

	items := make([]database.OrderItem, 0, len(params))
	for _, p := range params {
		p.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, p)
		if err != nil {
			return nil, persistenceErr("create order item", err)
		}
		items = append(items, item)
	}

	if _, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     table.ID,
		Status: enum.TableStatusOccupied,
	}); err != nil {
		return nil, persistenceErr("occupy table", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, activeOrderConstraint) {
			return nil, ErrTableOccupied
		}
		return nil, persistenceErr("commit tx", err)
	}

	detail := &OrderDetail{Order: order, Items: items}
	s.events.Publish(req.RestaurantID, EventOrderCreated, detail)
	return detail, nil
}

// AdvanceOrderStatus moves an order forward in its lifecycle. Steps may be
// skipped; moving back or staying put is rejected. Completing an order
// frees its table.
func (s *OrderService) AdvanceOrderStatus(ctx context.Context, restaurantID, orderID uuid.UUID, status string) (database.Order, error) {
	newRank := enum.OrderStatusRank(status)
	if newRank < 0 {
		return database.Order{}, ErrInvalidOrderStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:           orderID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, persistenceErr("get order", err)
	}

	if newRank <= enum.OrderStatusRank(order.Status) {
		return database.Order{}, fmt.Errorf("%w (%s -> %s)", ErrInvalidTransition, order.Status, status)
	}

	updated, err := completeOrMove(ctx, store, order, status)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, persistenceErr("commit tx", err)
	}

	s.events.Publish(restaurantID, EventOrderStatusChanged, updated)
	return updated, nil
}

// tableReleaser is the slice of a store needed to move an order and free
// its table.
type tableReleaser interface {
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
}

// completeOrMove writes the new status guarded by the current one and, on
// completion, releases the table.
func completeOrMove(ctx context.Context, store tableReleaser, order database.Order, status string) (database.Order, error) {
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:            order.ID,
		Status:        status,
		CurrentStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrConcurrentUpdate
		}
		return database.Order{}, persistenceErr("update order status", err)
	}

	if status == enum.OrderStatusCompleted {
		if _, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     order.TableID,
			Status: enum.TableStatusAvailable,
		}); err != nil {
			return database.Order{}, persistenceErr("release table", err)
		}
	}
	return updated, nil
}

// AdvanceItemStatus sets the kitchen status of one item. Item statuses are
// independent of the order status, but items of a completed order are
// frozen.
func (s *OrderService) AdvanceItemStatus(ctx context.Context, restaurantID, itemID uuid.UUID, status string) (database.OrderItem, error) {
	if !enum.IsOrderItemStatus(status) {
		return database.OrderItem{}, ErrInvalidItemStatus
	}

	item, err := s.store.GetOrderItem(ctx, database.GetOrderItemParams{
		ID:           itemID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, ErrItemNotFound
		}
		return database.OrderItem{}, persistenceErr("get order item", err)
	}

	order, err := s.store.GetOrder(ctx, database.GetOrderParams{
		ID:           item.OrderID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, ErrOrderNotFound
		}
		return database.OrderItem{}, persistenceErr("get order", err)
	}
	if order.Status == enum.OrderStatusCompleted {
		return database.OrderItem{}, ErrOrderCompleted
	}

	updated, err := s.store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID:     item.ID,
		Status: status,
	})
	if err != nil {
		return database.OrderItem{}, persistenceErr("update item status", err)
	}

	s.events.Publish(restaurantID, EventOrderItemStatus, updated)
	return updated, nil
}

// GetOrder returns an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.getOrder(ctx, restaurantID, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, persistenceErr("list order items", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ListOrders returns orders newest first, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	status := pgtype.Text{}
	if req.Status != "" {
		if enum.OrderStatusRank(req.Status) < 0 {
			return nil, ErrInvalidOrderStatus
		}
		status = pgtype.Text{String: req.Status, Valid: true}
	}

	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		RestaurantID: req.RestaurantID,
		Status:       status,
		Limit:        req.Limit,
		Offset:       req.Offset,
	})
	if err != nil {
		return nil, persistenceErr("list orders", err)
	}
	return orders, nil
}

// GetBill computes the current bill of an order from its items and the
// restaurant tax rate.
func (s *OrderService) GetBill(ctx context.Context, restaurantID, orderID uuid.UUID) (*BillResult, error) {
	order, err := s.getOrder(ctx, restaurantID, orderID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, persistenceErr("get restaurant", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, persistenceErr("list order items", err)
	}

	bill, err := billFor(items, restaurant)
	if err != nil {
		return nil, err
	}
	tip := numericToDecimal(order.TipAmount)
	return &BillResult{
		Order:      order,
		Items:      items,
		Bill:       bill,
		Tip:        tip,
		FinalTotal: bill.WithTip(tip),
	}, nil
}

// Invoice builds the printable invoice of an order. Paid orders carry their
// settling payment.
func (s *OrderService) Invoice(ctx context.Context, restaurantID, orderID uuid.UUID) (receipt.Receipt, error) {
	order, err := s.getOrder(ctx, restaurantID, orderID)
	if err != nil {
		return receipt.Receipt{}, err
	}

	var paid *database.Payment
	if order.PaymentStatus != enum.PaymentStatusUnpaid {
		payments, err := s.store.ListPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return receipt.Receipt{}, persistenceErr("list payments", err)
		}
		if len(payments) > 0 {
			paid = &payments[len(payments)-1]
		}
	}
	return buildReceipt(ctx, s.store, order, paid)
}

func (s *OrderService) getOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{
		ID:           orderID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, persistenceErr("get order", err)
	}
	return order, nil
}
