package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Order statuses. Transitions are monotonic: pending → processing →
// confirmed | failed, with a manual-review branch confirmed → released |
// rejected. No status is ever re-entered once left.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusFailed     = "failed"
	OrderStatusReleased   = "released"
	OrderStatusRejected   = "rejected"
	OrderStatusUnknown    = "unknown"
)

// Payment methods. Crypto orders carry the coin ticker (BTC, ETH, USDT...)
// as the method tag; manual peer-to-peer orders carry the handle name.
const (
	MethodMpesa   = "mpesa"
	MethodCashApp = "cashapp"
	MethodVenmo   = "venmo"
	MethodPayPal  = "paypal"
)

const (
	ItemTypePackage = "package"
	ItemTypeProduct = "product"
)

const (
	MpesaEnvSandbox    = "sandbox"
	MpesaEnvProduction = "production"
)

// TerminalOrderStatus reports whether no further payment-driven transition
// may be applied to an order in the given status.
func TerminalOrderStatus(status string) bool {
	switch status {
	case OrderStatusConfirmed, OrderStatusFailed, OrderStatusReleased, OrderStatusRejected:
		return true
	}
	return false
}
