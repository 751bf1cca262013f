package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mehulsinha73/servicelink/database"
	"github.com/mehulsinha73/servicelink/escrow"
	"github.com/mehulsinha73/servicelink/models"
	"github.com/mehulsinha73/servicelink/notifications"
)

type CreateBookingRequest struct {
	VendorServiceID string  `json:"vendor_service_id" validate:"required,uuid"`
	ScheduledDate   string  `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	ScheduledTime   string  `json:"scheduled_time" validate:"required,datetime=15:04"`
	Notes           *string `json:"notes,omitempty"`
}

func CreateBooking(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	customerID, _ := uuid.Parse(claims["user_id"].(string))

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	serviceID, _ := uuid.Parse(req.VendorServiceID)

	var service models.VendorService
	if err := database.DB.Preload("Vendor").First(&service, "id = ? AND active = ?", serviceID, true).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Service not found"})
	}

	booking := models.Booking{
		CustomerID:      customerID,
		VendorServiceID: serviceID,
		ScheduledDate:   req.ScheduledDate,
		ScheduledTime:   req.ScheduledTime,
		Status:          models.BookingStatusPending,
		VendorStatus:    models.VendorStatusPending,
		Notes:           req.Notes,
	}
	if err := database.DB.Create(&booking).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create booking"})
	}

	go notifications.SendEmail(service.Vendor.FullName, service.Vendor.Email, "You Have a New Booking Request!",
		"<h1>New Booking Request</h1><p>A customer has requested your service. Please accept or reject the booking from your dashboard.</p>")

	return c.Status(fiber.StatusCreated).JSON(booking)
}

func GetMyBookings(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	customerID, _ := uuid.Parse(claims["user_id"].(string))

	var bookings []models.Booking
	database.DB.
		Preload("VendorService.Vendor").
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		Find(&bookings)

	return c.JSON(bookings)
}

func GetVendorBookings(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	vendorID, _ := uuid.Parse(claims["user_id"].(string))

	var bookings []models.Booking
	database.DB.
		Preload("Customer").
		Preload("VendorService").
		Joins("JOIN vendor_services ON bookings.vendor_service_id = vendor_services.id").
		Where("vendor_services.vendor_id = ?", vendorID).
		Order("bookings.created_at desc").
		Find(&bookings)

	return c.JSON(bookings)
}

// RespondToBooking records the vendor's accept/reject decision. Acceptance
// is what makes a booking eligible for the transition scheduler.
func RespondToBooking(accept bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Locals("user").(*jwt.Token)
		claims := token.Claims.(jwt.MapClaims)
		vendorID, _ := uuid.Parse(claims["user_id"].(string))

		bookingID, err := uuid.Parse(c.Params("bookingId"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
		}

		if err := Escrow.RespondToBooking(c.Context(), bookingID, vendorID, accept); err != nil {
			return escrowError(c, err)
		}

		vendorStatus := models.VendorStatusAccepted
		bookingStatus := models.BookingStatusScheduled
		if !accept {
			vendorStatus = models.VendorStatusRejected
			bookingStatus = models.BookingStatusCancelled
		}
		return c.JSON(fiber.Map{"message": "Booking updated", "vendor_status": vendorStatus, "status": bookingStatus})
	}
}

func MarkServiceCompleted(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	vendorID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	if err := Escrow.MarkServiceCompleted(c.Context(), bookingID, vendorID); err != nil {
		return escrowError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Booking marked as service completed. Awaiting customer confirmation."})
}

type ConfirmCompletionRequest struct {
	Confirmed *bool  `json:"confirmed" validate:"required"`
	Rating    int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment   string `json:"comment" validate:"omitempty,max=1000"`
}

func ConfirmCompletion(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req ConfirmCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := Escrow.ConfirmCompletion(c.Context(), escrow.ConfirmInput{
		BookingID: bookingID,
		UserID:    userID,
		Confirmed: *req.Confirmed,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		return escrowError(c, err)
	}
	if result.RequiresDispute {
		return c.JSON(fiber.Map{"message": "To reject the completed service, please raise a dispute via the dispute endpoint."})
	}

	return c.JSON(fiber.Map{
		"message":              "Completion confirmed and vendor payout released.",
		"vendor_payout_id":     result.PayoutID,
		"vendor_payout_status": result.VendorPayoutStatus,
	})
}

type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=1000"`
}

func DisputeCompletion(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	dispute, err := Escrow.DisputeCompletion(c.Context(), escrow.DisputeInput{
		BookingID: bookingID,
		UserID:    userID,
		Reason:    req.Reason,
	})
	if err != nil {
		return escrowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Dispute recorded. The vendor payout is on hold pending review.",
		"dispute": dispute,
	})
}
