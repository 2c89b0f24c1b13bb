package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	Phone     string         `json:"phone"`
	TaxRate   pgtype.Numeric `json:"tax_rate"`
	Currency  string         `json:"currency"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type DiningTable struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	TableNumber  int32     `json:"table_number"`
	Capacity     int32     `json:"capacity"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MenuItem struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Description  pgtype.Text    `json:"description"`
	HalfPrice    pgtype.Numeric `json:"half_price"`
	FullPrice    pgtype.Numeric `json:"full_price"`
	Available    bool           `json:"available"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Order struct {
	ID            uuid.UUID          `json:"id"`
	RestaurantID  uuid.UUID          `json:"restaurant_id"`
	TableID       uuid.UUID          `json:"table_id"`
	CreatedBy     uuid.UUID          `json:"created_by"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"payment_status"`
	TotalAmount   pgtype.Numeric     `json:"total_amount"`
	TipAmount     pgtype.Numeric     `json:"tip_amount"`
	Notes         pgtype.Text        `json:"notes"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CompletedAt   pgtype.Timestamptz `json:"completed_at"`
}

type OrderItem struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	ItemName   string         `json:"item_name"`
	Portion    string         `json:"portion"`
	Quantity   int32          `json:"quantity"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
	Status     string         `json:"status"`
	Notes      pgtype.Text    `json:"notes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type Payment struct {
	ID               uuid.UUID          `json:"id"`
	OrderID          uuid.UUID          `json:"order_id"`
	Method           string             `json:"method"`
	Amount           pgtype.Numeric     `json:"amount"`
	TipAmount        pgtype.Numeric     `json:"tip_amount"`
	Status           string             `json:"status"`
	TransactionID    string             `json:"transaction_id"`
	GatewayReference pgtype.Text        `json:"gateway_reference"`
	CustomerName     pgtype.Text        `json:"customer_name"`
	CustomerEmail    pgtype.Text        `json:"customer_email"`
	CustomerPhone    pgtype.Text        `json:"customer_phone"`
	RefundAmount     pgtype.Numeric     `json:"refund_amount"`
	RefundReason     pgtype.Text        `json:"refund_reason"`
	RefundedAt       pgtype.Timestamptz `json:"refunded_at"`
	ProcessedBy      uuid.UUID          `json:"processed_by"`
	CreatedAt        time.Time          `json:"created_at"`
}

type PaymentSplit struct {
	ID         uuid.UUID      `json:"id"`
	PaymentID  uuid.UUID      `json:"payment_id"`
	Amount     pgtype.Numeric `json:"amount"`
	Percentage pgtype.Numeric `json:"percentage"`
	PayerName  pgtype.Text    `json:"payer_name"`
	PayerEmail pgtype.Text    `json:"payer_email"`
	CreatedAt  time.Time      `json:"created_at"`
}
