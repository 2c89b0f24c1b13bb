package service

import "github.com/google/uuid"

// Event types pushed to the live boards.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderItemStatus    = "order_item.status_changed"
	EventOrderPaid          = "order.paid"
	EventPaymentRefunded    = "payment.refunded"
	EventTableStatusChanged = "table.status_changed"
)

// EventPublisher fans order events out to connected clients.
// Satisfied by *ws.Hub.
type EventPublisher interface {
	Publish(restaurantID uuid.UUID, eventType string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(uuid.UUID, string, any) {}
