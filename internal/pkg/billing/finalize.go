package billing

import (
	"context"

	"github.com/arttus/uc-bitpay/app/models"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
)

// blockedMessage is shown when full payment was not completed in time.
const blockedMessage = "Full payment was not made on this order. If the invoice has expired and you still wish to make this " +
	"purchase, please go back and checkout again. If it has expired and you made partial payment, but not full " +
	"payment, please contact us for a refund or to apply the funds to another order."

// FinalizeOrder runs the one-time checkout-submission check. It re-fetches
// the invoice so the buyer sees a correct order status even before any
// notification arrives. Ledger entries are never written here; those belong
// exclusively to the notification state machine, so a concurrently arriving
// notification cannot double-enter a payment.
func (s *Service) FinalizeOrder(ctx context.Context, order *models.Order) (FinalResult, error) {
	rec, err := s.repo.FindInvoiceByOrder(order.ID)
	if err != nil {
		if isNotFound(err) {
			return FinalResult{}, ErrUnknownInvoice
		}
		return FinalResult{}, err
	}

	inv, err := s.gateway.GetInvoice(ctx, rec.InvoiceID, s.cfg.CurrentAPIKey)
	if err != nil {
		return FinalResult{}, err
	}

	switch inv.Status {
	case bitpay.StatusNew, bitpay.StatusExpired:
		return FinalResult{Outcome: FinalBlocked, Message: blockedMessage}, nil

	case bitpay.StatusConfirmed:
		// High transaction speeds can confirm before checkout completes.
		if _, err := s.repo.SetOrderStatusIfNotIn(order.ID, models.OrderStatusPaymentReceived,
			append(models.OrderTerminalStatuses(), models.OrderStatusPaymentReceived)...); err != nil {
			return FinalResult{}, err
		}
		return FinalResult{Outcome: FinalReceived}, nil

	default:
		// Paid or complete but not yet confirmed locally; park the order in
		// the interim status without regressing a received payment.
		if _, err := s.repo.SetOrderStatusIfNotIn(order.ID, models.OrderStatusBitpayPending,
			append(models.OrderTerminalStatuses(), models.OrderStatusPaymentReceived)...); err != nil {
			return FinalResult{}, err
		}
		return FinalResult{Outcome: FinalPendingConfirmation}, nil
	}
}
