// Package policy holds the single table that decides which staff roles may
// perform which operation. The router consults it through
// middleware.Authorize; handlers never check roles themselves.
package policy

import "github.com/tablepos/api/internal/enum"

type Operation string

const (
	OpRestaurantRead  Operation = "restaurant.read"
	OpRestaurantWrite Operation = "restaurant.write"

	OpUserList   Operation = "user.list"
	OpUserManage Operation = "user.manage"

	OpMenuRead   Operation = "menu.read"
	OpMenuWrite  Operation = "menu.write"
	OpMenuImport Operation = "menu.import"

	OpTableRead  Operation = "table.read"
	OpTableWrite Operation = "table.write"

	OpOrderCreate     Operation = "order.create"
	OpOrderRead       Operation = "order.read"
	OpOrderStatus     Operation = "order.status"
	OpOrderItemStatus Operation = "order_item.status"
	OpBillRead        Operation = "bill.read"

	OpPaymentCalculate Operation = "payment.calculate"
	OpPaymentProcess   Operation = "payment.process"
	OpPaymentRead      Operation = "payment.read"
	OpPaymentRefund    Operation = "payment.refund"

	OpLiveEvents Operation = "events.subscribe"
)

var (
	everyone   = []string{enum.UserRoleAdmin, enum.UserRoleManager, enum.UserRoleWaiter, enum.UserRoleChef}
	management = []string{enum.UserRoleAdmin, enum.UserRoleManager}
	floor      = []string{enum.UserRoleAdmin, enum.UserRoleManager, enum.UserRoleWaiter}
	kitchen    = []string{enum.UserRoleAdmin, enum.UserRoleChef}
	adminOnly  = []string{enum.UserRoleAdmin}
)

// Table maps each operation to the roles allowed to perform it.
var Table = map[Operation][]string{
	OpRestaurantRead:  everyone,
	OpRestaurantWrite: adminOnly,

	OpUserList:   management,
	OpUserManage: adminOnly,

	OpMenuRead:   everyone,
	OpMenuWrite:  management,
	OpMenuImport: management,

	OpTableRead:  everyone,
	OpTableWrite: management,

	OpOrderCreate:     floor,
	OpOrderRead:       everyone,
	OpOrderStatus:     floor,
	OpOrderItemStatus: kitchen,
	OpBillRead:        floor,

	OpPaymentCalculate: floor,
	OpPaymentProcess:   floor,
	OpPaymentRead:      floor,
	OpPaymentRefund:    adminOnly,

	OpLiveEvents: everyone,
}

// Allowed reports whether role may perform op. Operations missing from the
// table are denied.
func Allowed(op Operation, role string) bool {
	for _, r := range Table[op] {
		if r == role {
			return true
		}
	}
	return false
}
