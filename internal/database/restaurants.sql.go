package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getRestaurant = `-- name: GetRestaurant :one
SELECT id, name, address, phone, tax_rate, currency, created_at, updated_at
FROM restaurants
WHERE id = $1
`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx, getRestaurant, id)
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.TaxRate,
		&i.Currency,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateRestaurant = `-- name: UpdateRestaurant :one
UPDATE restaurants
SET name = $2, address = $3, phone = $4, tax_rate = $5, updated_at = now()
WHERE id = $1
RETURNING id, name, address, phone, tax_rate, currency, created_at, updated_at
`

type UpdateRestaurantParams struct {
	ID      uuid.UUID      `json:"id"`
	Name    string         `json:"name"`
	Address string         `json:"address"`
	Phone   string         `json:"phone"`
	TaxRate pgtype.Numeric `json:"tax_rate"`
}

func (q *Queries) UpdateRestaurant(ctx context.Context, arg UpdateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, updateRestaurant,
		arg.ID,
		arg.Name,
		arg.Address,
		arg.Phone,
		arg.TaxRate,
	)
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.TaxRate,
		&i.Currency,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
