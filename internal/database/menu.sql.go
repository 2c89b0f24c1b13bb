package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listMenuItems = `-- name: ListMenuItems :many
SELECT id, restaurant_id, name, category, description, half_price, full_price, available, created_at, updated_at
FROM menu_items
WHERE restaurant_id = $1
ORDER BY category, name
`

func (q *Queries) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		var i MenuItem
		if err := rows.Scan(
			&i.ID,
			&i.RestaurantID,
			&i.Name,
			&i.Category,
			&i.Description,
			&i.HalfPrice,
			&i.FullPrice,
			&i.Available,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const getMenuItem = `-- name: GetMenuItem :one
SELECT id, restaurant_id, name, category, description, half_price, full_price, available, created_at, updated_at
FROM menu_items
WHERE id = $1 AND restaurant_id = $2
`

type GetMenuItemParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.RestaurantID)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Category,
		&i.Description,
		&i.HalfPrice,
		&i.FullPrice,
		&i.Available,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (restaurant_id, name, category, description, half_price, full_price, available)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, restaurant_id, name, category, description, half_price, full_price, available, created_at, updated_at
`

type CreateMenuItemParams struct {
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Description  pgtype.Text    `json:"description"`
	HalfPrice    pgtype.Numeric `json:"half_price"`
	FullPrice    pgtype.Numeric `json:"full_price"`
	Available    bool           `json:"available"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.RestaurantID,
		arg.Name,
		arg.Category,
		arg.Description,
		arg.HalfPrice,
		arg.FullPrice,
		arg.Available,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Category,
		&i.Description,
		&i.HalfPrice,
		&i.FullPrice,
		&i.Available,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items
SET name = $3, category = $4, description = $5, half_price = $6, full_price = $7, available = $8, updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING id, restaurant_id, name, category, description, half_price, full_price, available, created_at, updated_at
`

type UpdateMenuItemParams struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Description  pgtype.Text    `json:"description"`
	HalfPrice    pgtype.Numeric `json:"half_price"`
	FullPrice    pgtype.Numeric `json:"full_price"`
	Available    bool           `json:"available"`
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.RestaurantID,
		arg.Name,
		arg.Category,
		arg.Description,
		arg.HalfPrice,
		arg.FullPrice,
		arg.Available,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Category,
		&i.Description,
		&i.HalfPrice,
		&i.FullPrice,
		&i.Available,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteMenuItem = `-- name: DeleteMenuItem :one
DELETE FROM menu_items
WHERE id = $1 AND restaurant_id = $2
RETURNING id
`

type DeleteMenuItemParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) DeleteMenuItem(ctx context.Context, arg DeleteMenuItemParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteMenuItem, arg.ID, arg.RestaurantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
