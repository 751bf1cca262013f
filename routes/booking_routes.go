package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mehulsinha73/servicelink/handlers"
	"github.com/mehulsinha73/servicelink/middleware"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected())
	booking.Get("/me", handlers.GetMyBookings)
	booking.Post("", handlers.CreateBooking)
	booking.Post("/:bookingId/confirm", handlers.ConfirmCompletion)
	booking.Post("/:bookingId/dispute", handlers.DisputeCompletion)

	vendorBooking := api.Group("/vendor/bookings", middleware.Protected(), middleware.VendorRequired())
	vendorBooking.Get("", handlers.GetVendorBookings)
	vendorBooking.Post("/:bookingId/accept", handlers.RespondToBooking(true))
	vendorBooking.Post("/:bookingId/reject", handlers.RespondToBooking(false))
	vendorBooking.Post("/:bookingId/complete", handlers.MarkServiceCompleted)
}
