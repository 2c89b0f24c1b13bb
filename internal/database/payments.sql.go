package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `p.id, p.order_id, p.method, p.amount, p.tip_amount, p.status, p.transaction_id, p.gateway_reference,
       p.customer_name, p.customer_email, p.customer_phone, p.refund_amount, p.refund_reason, p.refunded_at,
       p.processed_by, p.created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Method,
		&i.Amount,
		&i.TipAmount,
		&i.Status,
		&i.TransactionID,
		&i.GatewayReference,
		&i.CustomerName,
		&i.CustomerEmail,
		&i.CustomerPhone,
		&i.RefundAmount,
		&i.RefundReason,
		&i.RefundedAt,
		&i.ProcessedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments AS p (order_id, method, amount, tip_amount, status, transaction_id, gateway_reference,
                           customer_name, customer_email, customer_phone, processed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID          uuid.UUID      `json:"order_id"`
	Method           string         `json:"method"`
	Amount           pgtype.Numeric `json:"amount"`
	TipAmount        pgtype.Numeric `json:"tip_amount"`
	Status           string         `json:"status"`
	TransactionID    string         `json:"transaction_id"`
	GatewayReference pgtype.Text    `json:"gateway_reference"`
	CustomerName     pgtype.Text    `json:"customer_name"`
	CustomerEmail    pgtype.Text    `json:"customer_email"`
	CustomerPhone    pgtype.Text    `json:"customer_phone"`
	ProcessedBy      uuid.UUID      `json:"processed_by"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.OrderID,
		arg.Method,
		arg.Amount,
		arg.TipAmount,
		arg.Status,
		arg.TransactionID,
		arg.GatewayReference,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
		arg.ProcessedBy,
	))
}

const getPaymentForUpdate = `-- name: GetPaymentForUpdate :one
SELECT ` + paymentColumns + `
FROM payments p
JOIN orders o ON o.id = p.order_id
WHERE p.id = $1 AND o.restaurant_id = $2
FOR UPDATE OF p
`

type GetPaymentForUpdateParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetPaymentForUpdate(ctx context.Context, arg GetPaymentForUpdateParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentForUpdate, arg.ID, arg.RestaurantID))
}

const listPaymentsByOrder = `-- name: ListPaymentsByOrder :many
SELECT ` + paymentColumns + `
FROM payments p
WHERE p.order_id = $1
ORDER BY p.created_at
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
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

const refundPayment = `-- name: RefundPayment :one
UPDATE payments AS p
SET status = 'refunded', refund_amount = $2, refund_reason = $3, refunded_at = now()
WHERE p.id = $1 AND p.status = 'completed'
RETURNING ` + paymentColumns

type RefundPaymentParams struct {
	ID           uuid.UUID      `json:"id"`
	RefundAmount pgtype.Numeric `json:"refund_amount"`
	RefundReason pgtype.Text    `json:"refund_reason"`
}

func (q *Queries) RefundPayment(ctx context.Context, arg RefundPaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, refundPayment, arg.ID, arg.RefundAmount, arg.RefundReason))
}

const createPaymentSplit = `-- name: CreatePaymentSplit :one
INSERT INTO payment_splits (payment_id, amount, percentage, payer_name, payer_email)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, payment_id, amount, percentage, payer_name, payer_email, created_at
`

type CreatePaymentSplitParams struct {
	PaymentID  uuid.UUID      `json:"payment_id"`
	Amount     pgtype.Numeric `json:"amount"`
	Percentage pgtype.Numeric `json:"percentage"`
	PayerName  pgtype.Text    `json:"payer_name"`
	PayerEmail pgtype.Text    `json:"payer_email"`
}

func (q *Queries) CreatePaymentSplit(ctx context.Context, arg CreatePaymentSplitParams) (PaymentSplit, error) {
	row := q.db.QueryRow(ctx, createPaymentSplit,
		arg.PaymentID,
		arg.Amount,
		arg.Percentage,
		arg.PayerName,
		arg.PayerEmail,
	)
	var i PaymentSplit
	err := row.Scan(
		&i.ID,
		&i.PaymentID,
		&i.Amount,
		&i.Percentage,
		&i.PayerName,
		&i.PayerEmail,
		&i.CreatedAt,
	)
	return i, err
}

const listSplitsByPayment = `-- name: ListSplitsByPayment :many
SELECT id, payment_id, amount, percentage, payer_name, payer_email, created_at
FROM payment_splits
WHERE payment_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListSplitsByPayment(ctx context.Context, paymentID uuid.UUID) ([]PaymentSplit, error) {
	rows, err := q.db.Query(ctx, listSplitsByPayment, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PaymentSplit{}
	for rows.Next() {
		var i PaymentSplit
		if err := rows.Scan(
			&i.ID,
			&i.PaymentID,
			&i.Amount,
			&i.Percentage,
			&i.PayerName,
			&i.PayerEmail,
			&i.CreatedAt,
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
