package models

import "time"

// OrderComment is an admin-visible note attached to an order, written by the
// payment flow when an invoice changes state.
type OrderComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Source    string    `gorm:"type:varchar(16);not null;default:'admin'" json:"source"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
