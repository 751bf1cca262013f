package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mehulsinha73/servicelink/handlers"
	"github.com/mehulsinha73/servicelink/middleware"
)

func ServiceRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/services", handlers.ListServices)

	vendor := api.Group("/vendor/services", middleware.Protected(), middleware.VendorRequired())
	vendor.Post("", handlers.CreateService)
	vendor.Put("/:serviceId", handlers.UpdateService)
	vendor.Delete("/:serviceId", handlers.DeactivateService)
}
