package bitpay

import "strings"

// InvoiceStatus is the closed set of invoice lifecycle states reported by
// bitpay. Anything outside the known set parses to StatusUnrecognized so the
// caller can route it through its default handling instead of string-matching.
type InvoiceStatus string

const (
	StatusNew          InvoiceStatus = "new"
	StatusPaid         InvoiceStatus = "paid"
	StatusConfirmed    InvoiceStatus = "confirmed"
	StatusComplete     InvoiceStatus = "complete"
	StatusExpired      InvoiceStatus = "expired"
	StatusInvalid      InvoiceStatus = "invalid"
	StatusUnrecognized InvoiceStatus = "unrecognized"
)

// ParseInvoiceStatus maps a wire status string to the closed status set.
func ParseInvoiceStatus(raw string) InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new":
		return StatusNew
	case "paid":
		return StatusPaid
	case "confirmed":
		return StatusConfirmed
	case "complete":
		return StatusComplete
	case "expired":
		return StatusExpired
	case "invalid":
		return StatusInvalid
	default:
		return StatusUnrecognized
	}
}

// Invoice is the remote invoice state at the moment of fetch. It is never
// persisted; the remote side mutates it asynchronously.
type Invoice struct {
	ID       string
	Status   InvoiceStatus
	Price    float64
	Currency string
	URL      string
}

// Notification is a verified invoice status notification. RawStatus keeps the
// wire value for operator alerts about unrecognized statuses.
type Notification struct {
	InvoiceID string
	Status    InvoiceStatus
	RawStatus string
	Price     float64
	URL       string
	OrderID   uint
}
