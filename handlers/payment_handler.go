package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mehulsinha73/servicelink/database"
	"github.com/mehulsinha73/servicelink/escrow"
	"github.com/mehulsinha73/servicelink/models"
	"github.com/mehulsinha73/servicelink/utils"
)

type CreateOrderRequest struct {
	Gateway string `json:"gateway" validate:"required,oneof=razorpay stripe"`
}

// CreatePaymentOrder opens a gateway order for a booking so the customer
// can complete checkout client-side.
func CreatePaymentOrder(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	customerID, _ := uuid.Parse(claims["user_id"].(string))

	bookingID := c.Params("bookingId")
	if _, err := uuid.Parse(bookingID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var booking models.Booking
	if err := database.DB.Preload("VendorService").First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if booking.CustomerID != customerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your booking"})
	}

	gateway := Gateways[req.Gateway]
	amountMinor := utils.MinorUnits(booking.VendorService.Price)
	orderID, err := gateway.Charge(c.Context(), amountMinor, booking.VendorService.Currency, booking.ID.String())
	if err != nil {
		log.Printf("🔥 Gateway order creation failed for booking %s: %v", booking.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Payment could not be initiated, please try again."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id": orderID,
		"amount":   amountMinor,
		"currency": booking.VendorService.Currency,
		"gateway":  req.Gateway,
	})
}

type VerifyPaymentRequest struct {
	PaymentID string  `json:"payment_id" validate:"required"`
	OrderID   string  `json:"order_id" validate:"required"`
	Signature string  `json:"signature" validate:"required"`
	BookingID string  `json:"booking_id" validate:"required,uuid"`
	Gateway   string  `json:"gateway" validate:"required,oneof=razorpay stripe"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" validate:"omitempty,len=3"`
}

// VerifyPayment checks the checkout signature the client returned and, if
// genuine, captures the payment into escrow and confirms the booking.
func VerifyPayment(c *fiber.Ctx) error {
	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	gateway := Gateways[req.Gateway]
	if !gateway.VerifyCheckoutSignature(req.OrderID, req.PaymentID, req.Signature) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid payment signature"})
	}

	bookingID, _ := uuid.Parse(req.BookingID)
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	payment, err := Escrow.CapturePayment(c.Context(), escrow.CaptureInput{
		BookingID:      bookingID,
		Amount:         req.Amount,
		Currency:       currency,
		Gateway:        req.Gateway,
		GatewayOrderID: req.OrderID,
		GatewayTxnID:   req.PaymentID,
	})
	if err != nil {
		return escrowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Payment verified and booking confirmed.",
		"payment": payment,
	})
}

type gatewayWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
				Notes    struct {
					BookingID string `json:"booking_id"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// signatureHeaders maps a gateway name to the header its webhooks carry.
var signatureHeaders = map[string]string{
	"razorpay": "X-Razorpay-Signature",
	"stripe":   "Stripe-Signature",
}

// HandleGatewayWebhook processes asynchronous capture notifications. The
// HMAC signature is verified over the raw body before any payload field is
// trusted.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	gatewayName := c.Params("gateway")
	gateway, ok := Gateways[gatewayName]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown payment gateway"})
	}

	body := c.Body()
	signature := c.Get(signatureHeaders[gatewayName])
	if signature == "" || !gateway.VerifyWebhookSignature(body, signature) {
		log.Printf("⚠️ Rejected %s webhook with bad signature", gatewayName)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}

	var payload gatewayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	if payload.Event != "payment.captured" {
		return c.JSON(fiber.Map{"message": "Event ignored"})
	}

	entity := payload.Payload.Payment.Entity
	bookingID, err := uuid.Parse(entity.Notes.BookingID)
	if err != nil {
		log.Printf("⚠️ %s webhook without a valid booking reference (payment %s)", gatewayName, entity.ID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Webhook payload missing booking reference"})
	}

	_, err = Escrow.CapturePayment(c.Context(), escrow.CaptureInput{
		BookingID:      bookingID,
		Amount:         utils.FromMinorUnits(entity.Amount),
		Currency:       entity.Currency,
		Gateway:        gatewayName,
		GatewayOrderID: entity.OrderID,
		GatewayTxnID:   entity.ID,
	})
	if errors.Is(err, escrow.ErrPaymentExists) {
		return c.JSON(fiber.Map{"message": "Webhook already processed"})
	}
	if err != nil {
		log.Printf("🔥 CRITICAL: Error processing %s webhook for booking %s: %v", gatewayName, bookingID, err)
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Webhook processed successfully"})
}

type TriggerPayoutRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
}

// TriggerPayout is the administrative payout path, used to retry payouts
// that previously failed.
func TriggerPayout(c *fiber.Ctx) error {
	var req TriggerPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	paymentID, _ := uuid.Parse(req.PaymentID)
	result, err := Escrow.TriggerPayout(c.Context(), paymentID)
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":              "Vendor payout completed.",
		"vendor_payout_id":     result.PayoutID,
		"vendor_payout_status": result.VendorPayoutStatus,
	})
}
