package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusServed    = "served"
	OrderStatusCompleted = "completed"
)

// OrderStatusFlow is the forward order of the order lifecycle.
var OrderStatusFlow = []string{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusServed,
	OrderStatusCompleted,
}

const (
	OrderItemStatusPending   = "pending"
	OrderItemStatusPreparing = "preparing"
	OrderItemStatusReady     = "ready"
	OrderItemStatusServed    = "served"
)

const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// Payment row status. An order's payment_status uses the constants above.
const (
	PaymentRecordCompleted = "completed"
	PaymentRecordRefunded  = "refunded"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "admin"
	UserRoleManager = "manager"
	UserRoleWaiter  = "waiter"
	UserRoleChef    = "chef"
)

const (
	PortionHalf = "half"
	PortionFull = "full"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodUPI    = "upi"
	PaymentMethodWallet = "wallet"
)

// ── Helpers ──

// OrderStatusRank returns the position of s in OrderStatusFlow, or -1.
func OrderStatusRank(s string) int {
	for i, v := range OrderStatusFlow {
		if v == s {
			return i
		}
	}
	return -1
}

func IsOrderItemStatus(s string) bool {
	switch s {
	case OrderItemStatusPending, OrderItemStatusPreparing,
		OrderItemStatusReady, OrderItemStatusServed:
		return true
	}
	return false
}

func IsRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleManager, UserRoleWaiter, UserRoleChef:
		return true
	}
	return false
}

func IsPortion(s string) bool {
	return s == PortionHalf || s == PortionFull
}

func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodUPI, PaymentMethodWallet:
		return true
	}
	return false
}

// UsesGateway reports whether payments with method m are settled through
// the payment gateway rather than locally.
func UsesGateway(m string) bool {
	return m == PaymentMethodCard || m == PaymentMethodUPI || m == PaymentMethodWallet
}
