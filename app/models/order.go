package models

import "time"

// Order statuses touched by the bitpay payment flow. Stores may define
// additional statuses; the billing core only ever writes the ones below and
// only through guarded transitions.
const (
	OrderStatusPending         = "pending"
	OrderStatusPaymentReceived = "payment_received"
	OrderStatusBitpayPending   = "bitpay_pending"
	OrderStatusCanceled        = "canceled"
	OrderStatusCompleted       = "completed"
)

// Order is owned by the store's order subsystem. The billing core references
// it and mutates Status exclusively via Repository.SetOrderStatusIfNotIn.
type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Total     float64   `gorm:"type:decimal(10,2);not null" json:"total"`
	Status    string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderTerminalStatuses are statuses that must never be overwritten by
// payment notifications.
func OrderTerminalStatuses() []string {
	return []string{OrderStatusCanceled, OrderStatusCompleted}
}
