package models

import "time"

// Payment is one ledger entry against an order. Entries are written only by
// the notification state machine, never by checkout finalization.
type Payment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	Method     string    `gorm:"type:varchar(32);not null" json:"method"`
	Amount     float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Reference  string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"reference"`
	ReceivedAt time.Time `gorm:"not null" json:"received_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
