package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/enum"
)

// SetTableStatus lets staff mark a free table available or reserved.
// It takes the same row lock as CreateOrder, so an order opened meanwhile is
// visible to the active-order check and the table keeps its occupancy.
func (s *OrderService) SetTableStatus(ctx context.Context, restaurantID, tableID uuid.UUID, status string) (database.DiningTable, error) {
	if status != enum.TableStatusAvailable && status != enum.TableStatusReserved {
		return database.DiningTable{}, ErrInvalidTableStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, database.GetTableForUpdateParams{
		ID:           tableID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.DiningTable{}, ErrTableNotFound
		}
		return database.DiningTable{}, persistenceErr("lock table", err)
	}

	if _, err := store.GetActiveOrderByTable(ctx, table.ID); err == nil {
		return database.DiningTable{}, ErrTableOccupied
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return database.DiningTable{}, persistenceErr("get active order", err)
	}

	updated, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{ID: table.ID, Status: status})
	if err != nil {
		return database.DiningTable{}, persistenceErr("update table status", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, persistenceErr("commit", err)
	}

	s.events.Publish(restaurantID, EventTableStatusChanged, map[string]any{
		"table_id": updated.ID,
		"status":   updated.Status,
	})
	return updated, nil
}
