package models

import "time"

// InvoiceRecord maps an order to the bitpay invoice that currently represents
// it. At most one record exists per order; replacement on staleness is an
// atomic delete+insert so concurrent reverse lookups see either the old or
// the new record, never a partial one.
type InvoiceRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"not null;uniqueIndex" json:"order_id"`
	InvoiceID   string    `gorm:"type:varchar(191);not null;index" json:"invoice_id"`
	NotifyEmail string    `gorm:"type:varchar(255);not null;default:''" json:"notify_email"`
	Physical    bool      `gorm:"not null;default:false" json:"physical"`
	TxnSpeed    string    `gorm:"type:varchar(10);not null;default:'low'" json:"txn_speed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the historic table name used by the payment module.
func (InvoiceRecord) TableName() string {
	return "bitpay_invoices"
}
