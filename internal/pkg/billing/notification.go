package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/arttus/uc-bitpay/app/models"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
	"github.com/google/uuid"
)

// ProcessNotification runs the full inbound pipeline for one webhook
// delivery: journal the payload, authenticate it, resolve the invoice to a
// local order and apply the status transition. Every failure is handled
// internally (alerts, logs); the HTTP layer always answers 200 so bitpay is
// not told anything about internal outcomes.
func (s *Service) ProcessNotification(payload []byte) error {
	n, authErr := s.AuthenticateNotification(payload)

	created, stored, journalErr := s.recordNotification(payload, n, authErr == nil)
	if journalErr != nil {
		// The journal is bookkeeping; processing must not depend on it.
		log.Printf("bitpay: could not journal notification: %v", journalErr)
	}
	// Only a successfully processed event counts as a duplicate. Bitpay
	// redelivers byte-identical payloads, and that redelivery is the sole
	// recovery path after a key misconfiguration or a transient repo error,
	// so a failed attempt must stay retriable.
	if journalErr == nil && !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		log.Printf("bitpay: duplicate notification for event %s, skipping", stored.ProviderEventID)
		return nil
	}

	err := s.applyNotification(n, authErr)
	if journalErr == nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		if markErr := s.repo.MarkWebhookProcessed(stored.ID, msg); markErr != nil {
			log.Printf("bitpay: could not mark notification processed: %v", markErr)
		}
	}
	return err
}

func (s *Service) recordNotification(payload []byte, n *bitpay.Notification, authValid bool) (bool, *models.WebhookEvent, error) {
	sum := sha256.Sum256(payload)
	eventType := ""
	if n != nil {
		eventType = n.RawStatus
	}
	return s.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        ProviderBitpay,
		ProviderEventID: "hash:" + hex.EncodeToString(sum[:]),
		EventType:       eventType,
		PayloadJSON:     string(payload),
		AuthValid:       authValid,
	})
}

func (s *Service) applyNotification(n *bitpay.Notification, authErr error) error {
	if authErr != nil {
		return authErr
	}

	rec, err := s.repo.FindInvoiceByInvoiceID(n.InvoiceID)
	if err != nil {
		if isNotFound(err) {
			// Stale or foreign invoice; nothing to reconcile and nothing an
			// operator could act on.
			log.Printf("bitpay: notification for unknown invoice %s dropped", n.InvoiceID)
			return nil
		}
		return err
	}

	order, err := s.repo.GetOrder(rec.OrderID)
	if err != nil {
		if isNotFound(err) {
			log.Printf("bitpay: invoice %s references missing order %d", n.InvoiceID, rec.OrderID)
			return nil
		}
		return err
	}

	log.Printf("bitpay: order %d invoice %s status %s (order status %s)", order.ID, n.InvoiceID, n.RawStatus, order.Status)
	return s.HandleNotification(n, order)
}

// HandleNotification applies one authenticated, order-resolved notification.
// All transitions are idempotent: re-delivery, or confirmed/complete arriving
// in either order, never double-applies ledger entries or status writes.
func (s *Service) HandleNotification(n *bitpay.Notification, order *models.Order) error {
	switch n.Status {
	case bitpay.StatusPaid:
		// Payment sent but unconfirmed. No order or ledger mutation until the
		// invoice confirms.
		if err := s.repo.SaveOrderComment(order.ID,
			"Customer has sent the bitcoin transaction for payment, but it has not confirmed yet."); err != nil {
			return err
		}
		s.copyNotification(n, order, "paid")

	case bitpay.StatusConfirmed:
		won, err := s.repo.SetOrderStatusIfNotIn(order.ID, models.OrderStatusPaymentReceived,
			append(models.OrderTerminalStatuses(), models.OrderStatusPaymentReceived)...)
		if err != nil {
			return err
		}
		if won {
			if err := s.enterPayment(order.ID, n.Price); err != nil {
				return err
			}
			if err := s.repo.SaveOrderComment(order.ID,
				"Customer's bitcoin payment has confirmed according to the transaction speed configured for Bitpay."); err != nil {
				return err
			}
		}
		s.copyNotification(n, order, "confirmed")

	case bitpay.StatusComplete:
		// The guard makes ledger entry and status write at-most-once no
		// matter how confirmed and complete interleave.
		won, err := s.repo.SetOrderStatusIfNotIn(order.ID, models.OrderStatusPaymentReceived,
			append(models.OrderTerminalStatuses(), models.OrderStatusPaymentReceived)...)
		if err != nil {
			return err
		}
		if won {
			if err := s.repo.SaveOrderComment(order.ID, "Bitpay invoice URL: "+n.URL); err != nil {
				return err
			}
			if err := s.enterPayment(order.ID, n.Price); err != nil {
				return err
			}
		}
		s.copyNotification(n, order, "complete")

	case bitpay.StatusExpired:
		// Bitpay has not been observed to send these; handled defensively.

	case bitpay.StatusInvalid:
		s.alert(n, order, "Bitpay: invoice marked INVALID",
			"The Bitpay invoice for this order has been marked invalid. You may need to contact Bitpay to resolve the issue.")
		if err := s.repo.SaveOrderComment(order.ID,
			"The Bitpay invoice for this order has been marked INVALID. You may need to contact Bitpay to resolve the issue."); err != nil {
			return err
		}

	default:
		// "new" should never be notified, and unknown values are either
		// erroneous or newly introduced upstream. Alert the operator.
		s.alert(n, order, "Bitpay: unusual invoice status notification",
			fmt.Sprintf("Received a notification with unexpected invoice status %q. No order changes were made.", n.RawStatus))
	}

	return nil
}

func (s *Service) enterPayment(orderID uint, price float64) error {
	return s.repo.EnterPayment(&models.Payment{
		OrderID:    orderID,
		Method:     ProviderBitpay,
		Amount:     roundCents(price),
		Reference:  uuid.NewString(),
		ReceivedAt: time.Now(),
	})
}

func (s *Service) copyNotification(n *bitpay.Notification, order *models.Order, status string) {
	if !s.cfg.CopyNotifyEmails {
		return
	}
	body := fmt.Sprintf("Bitpay invoice %s for order %d is now %s.\nInvoice URL: %s", n.InvoiceID, order.ID, status, n.URL)
	if err := s.mailer.Send(s.cfg.AlertEmail, "Bitpay notification: "+status, body); err != nil {
		log.Printf("bitpay: failed to send notification copy: %v", err)
	}
}

func (s *Service) alert(n *bitpay.Notification, order *models.Order, subject, body string) {
	body = fmt.Sprintf("%s\n\nInvoice: %s\nOrder: %d\nStatus: %s\nURL: %s", body, n.InvoiceID, order.ID, n.RawStatus, n.URL)
	if err := s.mailer.Send(s.cfg.AlertEmail, subject, body); err != nil {
		log.Printf("bitpay: failed to send operator alert: %v", err)
	}
}
