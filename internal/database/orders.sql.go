package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, restaurant_id, table_id, created_by, status, payment_status, total_amount, tip_amount, notes, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.TableID,
		&i.CreatedBy,
		&i.Status,
		&i.PaymentStatus,
		&i.TotalAmount,
		&i.TipAmount,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.CompletedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (restaurant_id, table_id, created_by, total_amount, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	TableID      uuid.UUID      `json:"table_id"`
	CreatedBy    uuid.UUID      `json:"created_by"`
	TotalAmount  pgtype.Numeric `json:"total_amount"`
	Notes        pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.RestaurantID,
		arg.TableID,
		arg.CreatedBy,
		arg.TotalAmount,
		arg.Notes,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND restaurant_id = $2
`

type GetOrderParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.RestaurantID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND restaurant_id = $2
FOR NO KEY UPDATE
`

type GetOrderForUpdateParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.RestaurantID))
}

const getActiveOrderByTable = `-- name: GetActiveOrderByTable :one
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1 AND status <> 'completed'
`

func (q *Queries) GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getActiveOrderByTable, tableID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1
  AND ($2::text IS NULL OR status = $2::text)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersParams struct {
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Status       pgtype.Text `json:"status"`
	Limit        int32       `json:"limit"`
	Offset       int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.RestaurantID,
		arg.Status,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
    updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

// UpdateOrderStatusParams guards the write with the status the caller read;
// a concurrent change makes the update match no rows.
type UpdateOrderStatusParams struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	CurrentStatus string    `json:"current_status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.CurrentStatus))
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET payment_status = 'paid', tip_amount = $2, updated_at = now()
WHERE id = $1 AND payment_status = 'unpaid'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID        uuid.UUID      `json:"id"`
	TipAmount pgtype.Numeric `json:"tip_amount"`
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.TipAmount))
}

const markOrderRefunded = `-- name: MarkOrderRefunded :one
UPDATE orders
SET payment_status = 'refunded', updated_at = now()
WHERE id = $1 AND payment_status = 'paid'
RETURNING ` + orderColumns

func (q *Queries) MarkOrderRefunded(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderRefunded, id))
}
