package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablepos/api/internal/billing"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/receipt"
)

// ReceiptSource is what building a receipt reads.
// Satisfied by *database.Queries.
type ReceiptSource interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// billFor computes the bill of an order from its stored items.
func billFor(items []database.OrderItem, restaurant database.Restaurant) (billing.Bill, error) {
	lines := make([]billing.Line, len(items))
	for i, it := range items {
		lines[i] = billing.Line{UnitPrice: numericToDecimal(it.UnitPrice), Quantity: it.Quantity}
	}
	bill, err := billing.ComputeBill(billing.Subtotal(lines), numericToDecimal(restaurant.TaxRate))
	if err != nil {
		return billing.Bill{}, errors.Join(ErrValidation, err)
	}
	return bill, nil
}

// buildReceipt assembles the printable view of order. A nil payment yields
// an unpaid invoice.
func buildReceipt(ctx context.Context, src ReceiptSource, order database.Order, payment *database.Payment) (receipt.Receipt, error) {
	restaurant, err := src.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return receipt.Receipt{}, persistenceErr("get restaurant", err)
	}
	items, err := src.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return receipt.Receipt{}, persistenceErr("list order items", err)
	}
	bill, err := billFor(items, restaurant)
	if err != nil {
		return receipt.Receipt{}, err
	}

	r := receipt.Receipt{
		OrderID: order.ID,
		Restaurant: receipt.Restaurant{
			Name:     restaurant.Name,
			Address:  restaurant.Address,
			Phone:    restaurant.Phone,
			Currency: restaurant.Currency,
		},
		Bill: bill,
		Tip:  numericToDecimal(order.TipAmount),
		Date: time.Now(),
	}

	table, err := src.GetTable(ctx, database.GetTableParams{ID: order.TableID, RestaurantID: order.RestaurantID})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return receipt.Receipt{}, persistenceErr("get table", err)
	}
	r.TableNumber = table.TableNumber

	server, err := src.GetUserByID(ctx, order.CreatedBy)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return receipt.Receipt{}, persistenceErr("get server", err)
	}
	r.ServerName = server.FullName

	for _, it := range items {
		r.Items = append(r.Items, receipt.Item{
			Name:      it.ItemName,
			Portion:   it.Portion,
			Quantity:  it.Quantity,
			UnitPrice: numericToDecimal(it.UnitPrice),
		})
	}

	if payment != nil {
		r.Tip = numericToDecimal(payment.TipAmount)
		r.PaymentMethod = payment.Method
		r.TransactionID = payment.TransactionID
		r.CustomerName = payment.CustomerName.String
		r.CustomerEmail = payment.CustomerEmail.String
		r.Date = payment.CreatedAt
	}
	return r, nil
}
