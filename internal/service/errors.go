package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error classes. Every error the services return wraps exactly one of
// these, so callers can branch with errors.Is at either level.
var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrPaymentDeclined = errors.New("payment declined")
	ErrPersistence     = errors.New("persistence error")
)

// Errors returned by the order service.
var (
	ErrEmptyItems          = fmt.Errorf("%w: items are required", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	ErrInvalidPortion      = fmt.Errorf("%w: portion must be half or full", ErrValidation)
	ErrPortionUnavailable  = fmt.Errorf("%w: portion is not offered for this item", ErrValidation)
	ErrMenuItemUnavailable = fmt.Errorf("%w: menu item is not available", ErrValidation)
	ErrInvalidOrderStatus  = fmt.Errorf("%w: invalid order status", ErrValidation)
	ErrInvalidItemStatus   = fmt.Errorf("%w: invalid item status", ErrValidation)
	ErrInvalidMenuItemID   = fmt.Errorf("%w: invalid menu_item_id", ErrValidation)
	ErrInvalidTableStatus  = fmt.Errorf("%w: status must be available or reserved", ErrValidation)

	ErrTableNotFound    = fmt.Errorf("%w: table not found", ErrNotFound)
	ErrMenuItemNotFound = fmt.Errorf("%w: menu item not found", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("%w: order not found", ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("%w: order item not found", ErrNotFound)

	ErrTableOccupied     = fmt.Errorf("%w: table already has an active order", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: order status can only move forward", ErrConflict)
	ErrOrderCompleted    = fmt.Errorf("%w: order is already completed", ErrConflict)
	ErrConcurrentUpdate  = fmt.Errorf("%w: order changed concurrently, please retry", ErrConflict)
)

// Errors returned by the payment service.
var (
	ErrInvalidMethod    = fmt.Errorf("%w: invalid payment method", ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrNegativeTip      = fmt.Errorf("%w: tip must not be negative", ErrValidation)
	ErrUnbalancedSplits = fmt.Errorf("%w: splits do not add up to the payment amount", ErrValidation)
	ErrInvalidRefund    = fmt.Errorf("%w: refund amount must be positive and not exceed the payment", ErrValidation)

	ErrPaymentNotFound = fmt.Errorf("%w: payment not found", ErrNotFound)

	ErrAlreadyPaid     = fmt.Errorf("%w: order is already paid", ErrConflict)
	ErrAlreadyRefunded = fmt.Errorf("%w: payment is already refunded", ErrConflict)
)

// persistenceErr wraps a store failure for op.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// isUniqueViolation reports whether err is a unique constraint violation on
// constraint (pgconn error code 23505).
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
