package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/billing"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/enum"
	"github.com/tablepos/api/internal/gateway"
	"github.com/tablepos/api/internal/receipt"
)

// completedPaymentConstraint allows one completed payment per order.
const completedPaymentConstraint = "payments_one_completed_per_order"

const compensationTimeout = 10 * time.Second

// PaymentStore defines the DB methods needed by the payment service.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	ReceiptSource
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	MarkOrderRefunded(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	CreatePaymentSplit(ctx context.Context, arg database.CreatePaymentSplitParams) (database.PaymentSplit, error)
	GetPaymentForUpdate(ctx context.Context, arg database.GetPaymentForUpdateParams) (database.Payment, error)
	RefundPayment(ctx context.Context, arg database.RefundPaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	ListSplitsByPayment(ctx context.Context, paymentID uuid.UUID) ([]database.PaymentSplit, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// ReceiptDispatcher sends receipts without blocking the caller.
// Satisfied by *receipt.Dispatcher.
type ReceiptDispatcher interface {
	DispatchAsync(r receipt.Receipt) bool
}

// CustomerInfo identifies the paying guest. All fields are optional; an
// email enables the digital receipt.
type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

// ProcessPaymentRequest settles an order. Amount is what the guest pays in
// total, tip included.
type ProcessPaymentRequest struct {
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	ProcessedBy  uuid.UUID
	Method       string
	Amount       decimal.Decimal
	TipAmount    decimal.Decimal
	Details      gateway.MethodDetails
	Customer     CustomerInfo
	Splits       []billing.Share
}

// ProcessPaymentResult is the settled payment.
type ProcessPaymentResult struct {
	Payment       database.Payment
	Splits        []database.PaymentSplit
	Order         database.Order
	TransactionID string
	ReceiptSent   bool
}

// RefundRequest reverses a payment. A nil Amount refunds it in full.
type RefundRequest struct {
	RestaurantID uuid.UUID
	PaymentID    uuid.UUID
	Amount       *decimal.Decimal
	Reason       string
}

// PaymentDetail is a payment with its splits.
type PaymentDetail struct {
	Payment database.Payment
	Splits  []database.PaymentSplit
}

// PaymentService settles and refunds orders.
type PaymentService struct {
	pool           TxBeginner
	store          PaymentStore
	newStore       NewPaymentStore
	gateway        gateway.Gateway
	receipts       ReceiptDispatcher
	events         EventPublisher
	currency       string
	gatewayTimeout time.Duration
	now            func() time.Time
}

// PaymentConfig carries the tunables of the payment service.
type PaymentConfig struct {
	Currency       string
	GatewayTimeout time.Duration
}

// NewPaymentService creates a new PaymentService. receipts and events may be
// nil.
func NewPaymentService(pool TxBeginner, store PaymentStore, newStore NewPaymentStore, gw gateway.Gateway, receipts ReceiptDispatcher, events EventPublisher, cfg PaymentConfig) *PaymentService {
	if events == nil {
		events = nopPublisher{}
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 5 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	return &PaymentService{
		pool:           pool,
		store:          store,
		newStore:       newStore,
		gateway:        gw,
		receipts:       receipts,
		events:         events,
		currency:       cfg.Currency,
		gatewayTimeout: cfg.GatewayTimeout,
		now:            time.Now,
	}
}

// capture is a charge accepted by the gateway that has not been recorded
// yet.
type capture struct {
	intentID      string
	transactionID string
}

// ProcessPayment charges an order and, once the charge is accepted,
// records it, marks the order paid and completed, and frees the table. A
// declined charge changes nothing.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*ProcessPaymentResult, error) {
	// --- Validate ---
	if !enum.IsPaymentMethod(req.Method) {
		return nil, ErrInvalidMethod
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.TipAmount.IsNegative() {
		return nil, ErrNegativeTip
	}
	if !billing.Balanced(req.Amount, req.Splits) {
		return nil, fmt.Errorf("%w (sum %s, amount %s)", ErrUnbalancedSplits,
			billing.Sum(req.Splits).StringFixed(2), req.Amount.StringFixed(2))
	}
	for _, sp := range req.Splits {
		if !sp.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: split amounts must be positive", ErrValidation)
		}
	}

	// Fail fast before charging anyone; re-checked under lock below.
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: req.OrderID, RestaurantID: req.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr("get order", err)
	}
	if order.PaymentStatus != enum.PaymentStatusUnpaid {
		return nil, ErrAlreadyPaid
	}

	// --- Charge ---
	var charged capture
	if enum.UsesGateway(req.Method) {
		charged, err = s.charge(ctx, req)
		if err != nil {
			return nil, err
		}
	} else {
		charged.transactionID = s.cashTransactionID()
	}

	// --- Record ---
	result, err := s.record(ctx, req, charged)
	if err != nil {
		if charged.intentID != "" {
			s.compensate(charged, req.Amount, err)
		}
		return nil, err
	}

	s.events.Publish(req.RestaurantID, EventOrderPaid, result.Order)

	if req.Customer.Email != "" && s.receipts != nil {
		r, err := buildReceipt(ctx, s.store, result.Order, &result.Payment)
		if err != nil {
			log.Printf("ERROR: build receipt for order %s: %v", result.Order.ID, err)
		} else {
			result.ReceiptSent = s.receipts.DispatchAsync(r)
		}
	}
	return result, nil
}

// charge runs the gateway intent/confirm pair under the gateway timeout.
// Any failure, timeouts included, is a decline.
func (s *PaymentService) charge(ctx context.Context, req ProcessPaymentRequest) (capture, error) {
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	details := req.Details
	if details.Type == "" {
		details.Type = req.Method
	}

	intent, err := s.gateway.CreateIntent(gctx, req.Amount, s.currency, map[string]string{
		"order_id":      req.OrderID.String(),
		"restaurant_id": req.RestaurantID.String(),
	})
	if err != nil {
		return capture{}, fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
	}

	conf, err := s.gateway.Confirm(gctx, intent.ID, details)
	if err != nil {
		return capture{}, fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
	}
	return capture{intentID: intent.ID, transactionID: conf.ChargeID}, nil
}

// record writes the payment and settles the order in one transaction.
func (s *PaymentService) record(ctx context.Context, req ProcessPaymentRequest, c capture) (*ProcessPaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:           req.OrderID,
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr("lock order", err)
	}
	if order.PaymentStatus != enum.PaymentStatusUnpaid {
		return nil, ErrAlreadyPaid
	}

	gatewayRef := pgtype.Text{}
	if c.intentID != "" {
		gatewayRef = pgtype.Text{String: c.intentID, Valid: true}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:          order.ID,
		Method:           req.Method,
		Amount:           decimalToNumeric(req.Amount),
		TipAmount:        decimalToNumeric(req.TipAmount),
		Status:           enum.PaymentRecordCompleted,
		TransactionID:    c.transactionID,
		GatewayReference: gatewayRef,
		CustomerName:     optText(req.Customer.Name),
		CustomerEmail:    optText(req.Customer.Email),
		CustomerPhone:    optText(req.Customer.Phone),
		ProcessedBy:      req.ProcessedBy,
	})
	if err != nil {
		if isUniqueViolation(err, completedPaymentConstraint) {
			return nil, ErrAlreadyPaid
		}
		return nil, persistenceErr("create payment", err)
	}

	shares := billing.SplitCustom(req.Amount, req.Splits)
	splits := make([]database.PaymentSplit, 0, len(shares))
	for _, sh := range shares {
		split, err := store.CreatePaymentSplit(ctx, database.CreatePaymentSplitParams{
			PaymentID:  payment.ID,
			Amount:     decimalToNumeric(sh.Amount),
			Percentage: decimalToNumeric(sh.Percentage),
			PayerName:  optText(sh.PayerName),
			PayerEmail: optText(sh.PayerEmail),
		})
		if err != nil {
			return nil, persistenceErr("create payment split", err)
		}
		splits = append(splits, split)
	}

	paid, err := store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
		ID:        order.ID,
		TipAmount: decimalToNumeric(req.TipAmount),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyPaid
		}
		return nil, persistenceErr("mark order paid", err)
	}

	if paid.Status != enum.OrderStatusCompleted {
		paid, err = completeOrMove(ctx, store, paid, enum.OrderStatusCompleted)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, completedPaymentConstraint) {
			return nil, ErrAlreadyPaid
		}
		return nil, persistenceErr("commit tx", err)
	}

	return &ProcessPaymentResult{
		Payment:       payment,
		Splits:        splits,
		Order:         paid,
		TransactionID: c.transactionID,
	}, nil
}

// compensate refunds a captured charge whose recording failed. It runs on a
// fresh context since the request's may already be done.
func (s *PaymentService) compensate(c capture, amount decimal.Decimal, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	if _, err := s.gateway.Refund(ctx, c.intentID, amount); err != nil {
		log.Printf("ERROR: refund of unrecorded charge %s (%s) failed: %v (record error: %v)", c.transactionID, c.intentID, err, cause)
		return
	}
	log.Printf("WARNING: refunded unrecorded charge %s after record error: %v", c.transactionID, cause)
}

// cashTransactionID returns cash_<unix millis>_<random base36>.
func (s *PaymentService) cashTransactionID() string {
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
	return fmt.Sprintf("cash_%d_%s", s.now().UnixMilli(), suffix)
}

// RefundPayment reverses a completed payment once. The refund is written
// first and the gateway is asked inside the same transaction.
func (s *PaymentService) RefundPayment(ctx context.Context, req RefundRequest) (database.Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPaymentForUpdate(ctx, database.GetPaymentForUpdateParams{
		ID:           req.PaymentID,
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentNotFound
		}
		return database.Payment{}, persistenceErr("lock payment", err)
	}
	if payment.Status == enum.PaymentRecordRefunded {
		return database.Payment{}, ErrAlreadyRefunded
	}

	paid := numericToDecimal(payment.Amount)
	amount := paid
	if req.Amount != nil {
		amount = req.Amount.Round(2)
	}
	if !amount.IsPositive() || amount.GreaterThan(paid) {
		return database.Payment{}, ErrInvalidRefund
	}

	refunded, err := store.RefundPayment(ctx, database.RefundPaymentParams{
		ID:           payment.ID,
		RefundAmount: decimalToNumeric(amount),
		RefundReason: optText(req.Reason),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrAlreadyRefunded
		}
		return database.Payment{}, persistenceErr("refund payment", err)
	}

	order, err := store.MarkOrderRefunded(ctx, payment.OrderID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return database.Payment{}, persistenceErr("mark order refunded", err)
	}

	// The gateway is called last, with the payment row still locked, so a
	// decline rolls the writes back and only the commit can fail after it.
	var gatewayRefund *gateway.RefundConfirmation
	if payment.GatewayReference.Valid {
		gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		rc, err := s.gateway.Refund(gctx, payment.GatewayReference.String, amount)
		cancel()
		if err != nil {
			return database.Payment{}, fmt.Errorf("%w: refund: %w", ErrPaymentDeclined, err)
		}
		gatewayRefund = &rc
	}

	if err := tx.Commit(ctx); err != nil {
		if gatewayRefund != nil {
			log.Printf("ERROR: gateway refund %s of %s for payment %s (%s) was accepted but not recorded: %v",
				gatewayRefund.ID, amount.StringFixed(2), payment.ID, payment.GatewayReference.String, err)
		}
		return database.Payment{}, persistenceErr("commit tx", err)
	}

	s.events.Publish(req.RestaurantID, EventPaymentRefunded, map[string]any{
		"payment": refunded,
		"order":   order,
	})
	return refunded, nil
}

// ListPayments returns the payments of an order with their splits.
func (s *PaymentService) ListPayments(ctx context.Context, restaurantID, orderID uuid.UUID) ([]PaymentDetail, error) {
	if _, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr("get order", err)
	}

	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, persistenceErr("list payments", err)
	}

	out := make([]PaymentDetail, len(payments))
	for i, p := range payments {
		splits, err := s.store.ListSplitsByPayment(ctx, p.ID)
		if err != nil {
			return nil, persistenceErr("list splits", err)
		}
		out[i] = PaymentDetail{Payment: p, Splits: splits}
	}
	return out, nil
}
