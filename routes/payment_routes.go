package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mehulsinha73/servicelink/handlers"
	"github.com/mehulsinha73/servicelink/middleware"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/payments/webhook/:gateway", handlers.HandleGatewayWebhook)

	payments := api.Group("/payments", middleware.Protected())
	payments.Post("/create-order/:bookingId", handlers.CreatePaymentOrder)
	payments.Post("/verify", handlers.VerifyPayment)

	admin := api.Group("/admin/payments", middleware.Protected(), middleware.AdminRequired())
	admin.Post("/payout", handlers.TriggerPayout)
}
