package billing

import (
	"context"
	"fmt"
	"log"

	"github.com/arttus/uc-bitpay/app/models"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
)

// EnsureInvoice guarantees the order has exactly one usable invoice and
// returns its record together with the current remote snapshot.
//
// The stored invoice is reused only when the remote snapshot is not expired
// and still matches the order total (rounded to cents) and the store
// currency. A failed snapshot fetch counts as stale: re-issuing an invoice is
// cheaper than blocking checkout on a gateway hiccup. Replacement deletes the
// old record and inserts the new one in a single transaction, so a concurrent
// notification lookup sees either the old or the new invoice.
func (s *Service) EnsureInvoice(ctx context.Context, order *models.Order) (*models.InvoiceRecord, *bitpay.Invoice, error) {
	rec, err := s.repo.FindInvoiceByOrder(order.ID)
	if err != nil && !isNotFound(err) {
		return nil, nil, err
	}

	if rec != nil {
		inv, fetchErr := s.gateway.GetInvoice(ctx, rec.InvoiceID, s.cfg.CurrentAPIKey)
		if fetchErr == nil && !s.invoiceStale(inv, order) {
			return rec, inv, nil
		}
		if fetchErr != nil {
			log.Printf("bitpay: could not fetch invoice %s for order %d, issuing a new one: %v", rec.InvoiceID, order.ID, fetchErr)
		}
	}

	return s.issueInvoice(ctx, order)
}

func (s *Service) invoiceStale(inv *bitpay.Invoice, order *models.Order) bool {
	if inv.Status == bitpay.StatusExpired {
		return true
	}
	if roundCents(inv.Price) != roundCents(order.Total) {
		return true
	}
	return inv.Currency != s.cfg.Currency
}

func (s *Service) issueInvoice(ctx context.Context, order *models.Order) (*models.InvoiceRecord, *bitpay.Invoice, error) {
	notifyEmail := ""
	if s.cfg.NotifyEmailActive {
		notifyEmail = s.cfg.NotifyEmail
	}

	inv, err := s.gateway.CreateInvoice(ctx, s.cfg.CurrentAPIKey, bitpay.CreateInvoiceRequest{
		OrderID:           order.ID,
		Price:             roundCents(order.Total),
		Currency:          s.cfg.Currency,
		Physical:          s.cfg.Physical,
		TransactionSpeed:  s.cfg.TxnSpeed,
		FullNotifications: s.cfg.FullNotify,
		NotificationEmail: notifyEmail,
		NotificationURL:   s.cfg.NotificationURL(),
		RedirectURL:       s.cfg.RedirectURL,
	})
	if err != nil {
		log.Printf("bitpay: invoice creation failed for order %d: %v", order.ID, err)
		return nil, nil, fmt.Errorf("%w: %v", ErrInvoiceCreate, err)
	}

	rec := &models.InvoiceRecord{
		OrderID:     order.ID,
		InvoiceID:   inv.ID,
		NotifyEmail: notifyEmail,
		Physical:    s.cfg.Physical,
		TxnSpeed:    s.cfg.TxnSpeed,
	}
	if err := s.repo.ReplaceInvoice(rec); err != nil {
		return nil, nil, err
	}
	return rec, inv, nil
}
