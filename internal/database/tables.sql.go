package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listTables = `-- name: ListTables :many
SELECT t.id, t.restaurant_id, t.table_number, t.capacity, t.status, t.created_at, t.updated_at,
       o.id AS active_order_id, o.status AS active_order_status
FROM dining_tables t
LEFT JOIN orders o ON o.table_id = t.id AND o.status <> 'completed'
WHERE t.restaurant_id = $1
ORDER BY t.table_number
`

type ListTablesRow struct {
	ID                uuid.UUID   `json:"id"`
	RestaurantID      uuid.UUID   `json:"restaurant_id"`
	TableNumber       int32       `json:"table_number"`
	Capacity          int32       `json:"capacity"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	ActiveOrderID     pgtype.UUID `json:"active_order_id"`
	ActiveOrderStatus pgtype.Text `json:"active_order_status"`
}

func (q *Queries) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]ListTablesRow, error) {
	rows, err := q.db.Query(ctx, listTables, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListTablesRow{}
	for rows.Next() {
		var i ListTablesRow
		if err := rows.Scan(
			&i.ID,
			&i.RestaurantID,
			&i.TableNumber,
			&i.Capacity,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ActiveOrderID,
			&i.ActiveOrderStatus,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTable = `-- name: GetTable :one
SELECT id, restaurant_id, table_number, capacity, status, created_at, updated_at
FROM dining_tables
WHERE id = $1 AND restaurant_id = $2
`

type GetTableParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, getTable, arg.ID, arg.RestaurantID)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.TableNumber,
		&i.Capacity,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT id, restaurant_id, table_number, capacity, status, created_at, updated_at
FROM dining_tables
WHERE id = $1 AND restaurant_id = $2
FOR UPDATE
`

type GetTableForUpdateParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetTableForUpdate(ctx context.Context, arg GetTableForUpdateParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, arg.ID, arg.RestaurantID)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.TableNumber,
		&i.Capacity,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (restaurant_id, table_number, capacity)
VALUES ($1, $2, $3)
RETURNING id, restaurant_id, table_number, capacity, status, created_at, updated_at
`

type CreateTableParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	TableNumber  int32     `json:"table_number"`
	Capacity     int32     `json:"capacity"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, createTable, arg.RestaurantID, arg.TableNumber, arg.Capacity)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.TableNumber,
		&i.Capacity,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE dining_tables SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, table_number, capacity, status, created_at, updated_at
`

type UpdateTableStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status)
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.TableNumber,
		&i.Capacity,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
