package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/billing"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/enum"
	"github.com/tablepos/api/internal/gateway"
	"github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/policy"
	"github.com/tablepos/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error)
	RefundPayment(ctx context.Context, req service.RefundRequest) (database.Payment, error)
	ListPayments(ctx context.Context, restaurantID, orderID uuid.UUID) ([]service.PaymentDetail, error)
}

// PaymentHandler handles payment and bill calculator endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.With(middleware.Authorize(policy.OpPaymentCalculate)).Post("/calculate-tip", h.CalculateTip)
		r.With(middleware.Authorize(policy.OpPaymentCalculate)).Post("/calculate-split", h.CalculateSplit)
		r.With(middleware.Authorize(policy.OpPaymentProcess)).Post("/process", h.Process)
		r.With(middleware.Authorize(policy.OpPaymentRefund)).Post("/refund/{id}", h.Refund)
		r.With(middleware.Authorize(policy.OpPaymentRead)).Get("/orders/{id}", h.List)
	})
}

// --- Request / Response types ---

type calculateTipRequest struct {
	BillTotal       string `json:"bill_total"`
	TipPercent      string `json:"tip_percent"`
	CustomTipAmount string `json:"custom_tip_amount"`
}

type tipResponse struct {
	BillTotal  string `json:"bill_total"`
	TipPercent string `json:"tip_percent"`
	TipAmount  string `json:"tip_amount"`
	FinalTotal string `json:"final_total"`
}

type splitRequest struct {
	Amount     string `json:"amount"`
	PayerName  string `json:"payer_name"`
	PayerEmail string `json:"payer_email"`
}

type calculateSplitRequest struct {
	Total        string         `json:"total"`
	SplitCount   int            `json:"split_count"`
	CustomSplits []splitRequest `json:"custom_splits"`
}

type splitResponse struct {
	Amount     string  `json:"amount"`
	Percentage string  `json:"percentage"`
	PayerName  *string `json:"payer_name"`
	PayerEmail *string `json:"payer_email"`
}

type calculateSplitResponse struct {
	Total    string          `json:"total"`
	Splits   []splitResponse `json:"splits"`
	Sum      string          `json:"sum"`
	Balanced bool            `json:"balanced"`
}

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type processPaymentRequest struct {
	OrderID       string                `json:"order_id"`
	Method        string                `json:"method"`
	Amount        string                `json:"amount"`
	TipAmount     string                `json:"tip_amount"`
	MethodDetails gateway.MethodDetails `json:"method_details"`
	Customer      customerRequest       `json:"customer"`
	Splits        []splitRequest        `json:"splits"`
}

type refundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type paymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"order_id"`
	Method           string          `json:"method"`
	Amount           string          `json:"amount"`
	TipAmount        string          `json:"tip_amount"`
	Status           string          `json:"status"`
	TransactionID    string          `json:"transaction_id"`
	GatewayReference *string         `json:"gateway_reference"`
	CustomerName     *string         `json:"customer_name"`
	CustomerEmail    *string         `json:"customer_email"`
	RefundAmount     *string         `json:"refund_amount"`
	RefundReason     *string         `json:"refund_reason"`
	RefundedAt       *time.Time      `json:"refunded_at"`
	ProcessedBy      uuid.UUID       `json:"processed_by"`
	CreatedAt        time.Time       `json:"created_at"`
	Splits           []splitResponse `json:"splits,omitempty"`
}

type processPaymentResponse struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	TransactionID string          `json:"transaction_id"`
	ReceiptSent   bool            `json:"receipt_sent"`
	Payment       paymentResponse `json:"payment"`
	Order         orderResponse   `json:"order"`
}

// --- Handlers ---

// CalculateTip handles POST /payment/calculate-tip.
func (h *PaymentHandler) CalculateTip(w http.ResponseWriter, r *http.Request) {
	var req calculateTipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	billTotal, err := decimal.NewFromString(req.BillTotal)
	if err != nil || billTotal.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bill_total must be a non-negative amount"})
		return
	}

	percent, ok := parseOptionalAmount(w, req.TipPercent, "tip_percent")
	if !ok {
		return
	}
	custom, ok := parseOptionalAmount(w, req.CustomTipAmount, "custom_tip_amount")
	if !ok {
		return
	}

	tip, err := billing.ComputeTip(billTotal, percent, custom)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, tipResponse{
		BillTotal:  billTotal.StringFixed(2),
		TipPercent: tip.Percent.StringFixed(2),
		TipAmount:  tip.Amount.StringFixed(2),
		FinalTotal: tip.FinalTotal.StringFixed(2),
	})
}

// CalculateSplit handles POST /payment/calculate-split. Either split_count
// or custom_splits is required; custom splits win when both are given.
func (h *PaymentHandler) CalculateSplit(w http.ResponseWriter, r *http.Request) {
	var req calculateSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	total, err := decimal.NewFromString(req.Total)
	if err != nil || !total.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "total must be a positive amount"})
		return
	}

	var shares []billing.Share
	switch {
	case len(req.CustomSplits) > 0:
		custom, ok := parseSplits(w, req.CustomSplits)
		if !ok {
			return
		}
		shares = billing.SplitCustom(total, custom)
	case req.SplitCount > 0:
		shares, err = billing.SplitEvenly(total, req.SplitCount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "split_count or custom_splits is required"})
		return
	}

	writeJSON(w, http.StatusOK, calculateSplitResponse{
		Total:    total.StringFixed(2),
		Splits:   toSplitResponses(shares),
		Sum:      billing.Sum(shares).StringFixed(2),
		Balanced: billing.Balanced(total, shares),
	})
}

// Process handles POST /payment/process.
func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}

	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method is required"})
		return
	}
	if !enum.IsPaymentMethod(req.Method) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid method"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	tip := decimal.Zero
	if req.TipAmount != "" {
		tip, err = decimal.NewFromString(req.TipAmount)
		if err != nil || tip.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tip_amount must not be negative"})
			return
		}
	}

	if req.Customer.Email != "" && !strings.Contains(req.Customer.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer email"})
		return
	}

	splits, ok := parseSplits(w, req.Splits)
	if !ok {
		return
	}

	res, err := h.svc.ProcessPayment(r.Context(), service.ProcessPaymentRequest{
		RestaurantID: claims.RestaurantID,
		OrderID:      orderID,
		ProcessedBy:  claims.UserID,
		Method:       req.Method,
		Amount:       amount,
		TipAmount:    tip,
		Details:      req.MethodDetails,
		Customer: service.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Splits: splits,
	})
	if err != nil {
		writeServiceError(w, "process payment", err)
		return
	}

	payment := toPaymentResponse(res.Payment)
	payment.Splits = dbSplitsToResponses(res.Splits)

	writeJSON(w, http.StatusCreated, processPaymentResponse{
		PaymentID:     res.Payment.ID,
		TransactionID: res.TransactionID,
		ReceiptSent:   res.ReceiptSent,
		Payment:       payment,
		Order:         toOrderResponse(res.Order),
	})
}

// Refund handles POST /payment/refund/{id}. Without an amount the full
// payment is refunded.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	var req refundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	amount, ok := parseOptionalAmount(w, req.Amount, "amount")
	if !ok {
		return
	}

	payment, err := h.svc.RefundPayment(r.Context(), service.RefundRequest{
		RestaurantID: claims.RestaurantID,
		PaymentID:    paymentID,
		Amount:       amount,
		Reason:       req.Reason,
	})
	if err != nil {
		writeServiceError(w, "refund payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// List handles GET /payment/orders/{id}.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), claims.RestaurantID, orderID)
	if err != nil {
		writeServiceError(w, "list payments", err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p.Payment)
		resp[i].Splits = dbSplitsToResponses(p.Splits)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseOptionalAmount parses s when set. It writes a 400 and returns false
// on a malformed value.
func parseOptionalAmount(w http.ResponseWriter, s, field string) (*decimal.Decimal, bool) {
	if s == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + field})
		return nil, false
	}
	return &d, true
}

func parseSplits(w http.ResponseWriter, in []splitRequest) ([]billing.Share, bool) {
	if len(in) == 0 {
		return nil, true
	}
	out := make([]billing.Share, len(in))
	for i, s := range in {
		amount, err := decimal.NewFromString(s.Amount)
		if err != nil || !amount.IsPositive() {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatSplitError(i, "amount must be positive"),
			})
			return nil, false
		}
		out[i] = billing.Share{Amount: amount, PayerName: s.PayerName, PayerEmail: s.PayerEmail}
	}
	return out, true
}

func formatSplitError(idx int, msg string) string {
	return fmt.Sprintf("splits[%d]: %s", idx, msg)
}

func toSplitResponses(shares []billing.Share) []splitResponse {
	out := make([]splitResponse, len(shares))
	for i, s := range shares {
		out[i] = splitResponse{
			Amount:     s.Amount.StringFixed(2),
			Percentage: s.Percentage.StringFixed(2),
			PayerName:  nonEmpty(s.PayerName),
			PayerEmail: nonEmpty(s.PayerEmail),
		}
	}
	return out
}

func dbSplitsToResponses(splits []database.PaymentSplit) []splitResponse {
	if len(splits) == 0 {
		return nil
	}
	out := make([]splitResponse, len(splits))
	for i, s := range splits {
		out[i] = splitResponse{
			Amount:     numericToString(s.Amount),
			Percentage: numericToString(s.Percentage),
			PayerName:  optionalString(s.PayerName),
			PayerEmail: optionalString(s.PayerEmail),
		}
	}
	return out
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Method:           p.Method,
		Amount:           numericToString(p.Amount),
		TipAmount:        numericToString(p.TipAmount),
		Status:           p.Status,
		TransactionID:    p.TransactionID,
		GatewayReference: optionalString(p.GatewayReference),
		CustomerName:     optionalString(p.CustomerName),
		CustomerEmail:    optionalString(p.CustomerEmail),
		RefundReason:     optionalString(p.RefundReason),
		ProcessedBy:      p.ProcessedBy,
		CreatedAt:        p.CreatedAt,
	}
	if p.RefundAmount.Valid {
		s := numericToString(p.RefundAmount)
		resp.RefundAmount = &s
	}
	if p.RefundedAt.Valid {
		t := p.RefundedAt.Time
		resp.RefundedAt = &t
	}
	return resp
}
