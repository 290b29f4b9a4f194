package router

import (
	"github.com/arttus/uc-bitpay/app/controllers"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Checkout flow: review creates/reuses the invoice, submit finalizes.
	app.Get("/cart/checkout/:id/review", controllers.HandleCheckoutReview)
	app.Post("/cart/checkout/:id/submit", controllers.HandleOrderSubmit)

	// Bitpay invoice notifications (no CSRF, authenticated in the service).
	// Always answers 200 regardless of outcome.
	app.Post("/bitpay/notifications", controllers.HandleBitpayNotification)
}
