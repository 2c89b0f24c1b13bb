package database

import (
	"context"

	"github.com/google/uuid"
)

const getUserByUsername = `-- name: GetUserByUsername :one
SELECT id, restaurant_id, username, hashed_password, full_name, email, role, is_active, created_at, updated_at
FROM users
WHERE username = $1 AND is_active = true
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Username,
		&i.HashedPassword,
		&i.FullName,
		&i.Email,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, restaurant_id, username, hashed_password, full_name, email, role, is_active, created_at, updated_at
FROM users
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Username,
		&i.HashedPassword,
		&i.FullName,
		&i.Email,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listUsersByRestaurant = `-- name: ListUsersByRestaurant :many
SELECT id, restaurant_id, username, hashed_password, full_name, email, role, is_active, created_at, updated_at
FROM users
WHERE restaurant_id = $1 AND is_active = true
ORDER BY role, username
`

func (q *Queries) ListUsersByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		var i User
		if err := rows.Scan(
			&i.ID,
			&i.RestaurantID,
			&i.Username,
			&i.HashedPassword,
			&i.FullName,
			&i.Email,
			&i.Role,
			&i.IsActive,
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

const createUser = `-- name: CreateUser :one
INSERT INTO users (restaurant_id, username, hashed_password, full_name, email, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, restaurant_id, username, hashed_password, full_name, email, role, is_active, created_at, updated_at
`

type CreateUserParams struct {
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.RestaurantID,
		arg.Username,
		arg.HashedPassword,
		arg.FullName,
		arg.Email,
		arg.Role,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Username,
		&i.HashedPassword,
		&i.FullName,
		&i.Email,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deactivateUser = `-- name: DeactivateUser :one
UPDATE users SET is_active = false, updated_at = now()
WHERE id = $1 AND restaurant_id = $2 AND is_active = true
RETURNING id
`

type DeactivateUserParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) DeactivateUser(ctx context.Context, arg DeactivateUserParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deactivateUser, arg.ID, arg.RestaurantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
