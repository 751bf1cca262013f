package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mehulsinha73/servicelink/database"
	"github.com/mehulsinha73/servicelink/models"
)

type UpsertServiceRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	Active      *bool   `json:"active,omitempty"`
}

func ListServices(c *fiber.Ctx) error {
	var services []models.VendorService
	database.DB.Preload("Vendor").Where("active = ?", true).Order("created_at desc").Find(&services)
	return c.JSON(services)
}

func CreateService(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	vendorID, _ := uuid.Parse(claims["user_id"].(string))

	var req UpsertServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	service := models.VendorService{
		VendorID:    vendorID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Currency:    currency,
		Active:      true,
	}
	if err := database.DB.Create(&service).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create service"})
	}
	return c.Status(fiber.StatusCreated).JSON(service)
}

func UpdateService(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	vendorID, _ := uuid.Parse(claims["user_id"].(string))
	serviceID := c.Params("serviceId")

	var service models.VendorService
	if err := database.DB.First(&service, "id = ?", serviceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Service not found"})
	}
	if service.VendorID != vendorID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your service"})
	}

	var req UpsertServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	service.Title = req.Title
	service.Description = req.Description
	service.Category = req.Category
	service.Price = req.Price
	if req.Currency != "" {
		service.Currency = req.Currency
	}
	if req.Active != nil {
		service.Active = *req.Active
	}
	if err := database.DB.Save(&service).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update service"})
	}
	return c.JSON(service)
}

// DeactivateService hides a listing from the catalog. Listings are never
// physically deleted because bookings reference them.
func DeactivateService(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	vendorID, _ := uuid.Parse(claims["user_id"].(string))
	serviceID := c.Params("serviceId")

	res := database.DB.Model(&models.VendorService{}).
		Where("id = ? AND vendor_id = ?", serviceID, vendorID).
		Update("active", false)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate service"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Service not found"})
	}
	return c.JSON(fiber.Map{"message": "Service deactivated"})
}
