package controllers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arttus/uc-bitpay/internal/pkg/billing"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
	"github.com/arttus/uc-bitpay/internal/pkg/database"
	"github.com/arttus/uc-bitpay/internal/pkg/session"
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
)

func paymentService() (*billing.Service, error) {
	cfg, err := billing.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return billing.NewServiceFromDB(database.GetDB(), cfg), nil
}

// HandleBitpayNotification is the webhook endpoint bitpay posts invoice
// status changes to. It always answers 200: bitpay retries on its own
// schedule and must not learn anything about internal outcomes. All failure
// handling (alerts, drops) happens inside the service.
func HandleBitpayNotification(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	svc, err := paymentService()
	if err != nil {
		log.Printf("bitpay: notification endpoint misconfigured: %v", err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	if err := svc.ProcessNotification(rawBody); err != nil {
		log.Printf("bitpay: notification not processed: %v", err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleCheckoutReview ensures the order has a valid invoice and sends the
// buyer to pay it. Invoices that already collected payment short-circuit to
// checkout completion.
func HandleCheckoutReview(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("id")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusNotFound).SendString("order not found")
	}

	svc, err := paymentService()
	if err != nil {
		log.Printf("bitpay: checkout misconfigured: %v", err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Error creating Bitpay invoice"}).Redirect("/cart")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	order, err := svc.GetOrderForCheckout(uint(orderID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString("order not found")
	}

	_, inv, err := svc.EnsureInvoice(ctx, order)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Error creating Bitpay invoice"}).Redirect("/cart")
	}

	if inv.Status == bitpay.StatusPaid || inv.Status == bitpay.StatusComplete {
		_ = session.SetSessionValue(c, checkoutCompleteKey(order.ID), "1")
		return c.Redirect("/cart/checkout/complete", fiber.StatusSeeOther)
	}

	_ = session.SetSessionValue(c, checkoutReviewKey(order.ID), "1")
	return c.Redirect(inv.URL, fiber.StatusSeeOther)
}

// HandleOrderSubmit runs checkout-time finalization so the buyer sees a
// correct order status even before any notification has arrived.
func HandleOrderSubmit(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("id")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusNotFound).SendString("order not found")
	}

	svc, err := paymentService()
	if err != nil {
		log.Printf("bitpay: checkout misconfigured: %v", err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Checkout is currently unavailable"}).Redirect("/cart")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	order, err := svc.GetOrderForCheckout(uint(orderID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString("order not found")
	}

	res, err := svc.FinalizeOrder(ctx, order)
	if err != nil {
		log.Printf("bitpay: finalize failed for order %d: %v", order.ID, err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not verify your payment, please try again"}).Redirect("/cart")
	}

	if res.Outcome == billing.FinalBlocked {
		return flash.WithError(c, fiber.Map{"type": "error", "message": res.Message}).Redirect("/cart")
	}

	_ = session.SetSessionValue(c, checkoutCompleteKey(order.ID), "1")
	return c.Redirect("/cart/checkout/complete", fiber.StatusSeeOther)
}

func checkoutReviewKey(orderID uint) string {
	return fmt.Sprintf("uc_checkout_review_%d", orderID)
}

func checkoutCompleteKey(orderID uint) string {
	return fmt.Sprintf("uc_checkout_complete_%d", orderID)
}
