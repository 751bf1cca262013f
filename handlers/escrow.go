package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mehulsinha73/servicelink/escrow"
	"github.com/mehulsinha73/servicelink/payments"
)

var (
	Escrow   *escrow.Orchestrator
	Gateways map[string]payments.Gateway
)

// InitEscrow wires the orchestrator and the payment gateways into the
// handler package. Called once from main before routes are registered.
func InitEscrow(orch *escrow.Orchestrator, gateways map[string]payments.Gateway) {
	Escrow = orch
	Gateways = gateways
}

// escrowError maps orchestrator errors onto HTTP responses.
func escrowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, escrow.ErrBookingNotFound),
		errors.Is(err, escrow.ErrPaymentNotFound),
		errors.Is(err, escrow.ErrMissingPayment):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, escrow.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, escrow.ErrAlreadyInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Payout already in progress"})
	case errors.Is(err, escrow.ErrPaymentExists),
		errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrPaymentNotSuccessful),
		errors.Is(err, escrow.ErrAlreadyPaidOut),
		errors.Is(err, escrow.ErrInvalidPayoutState),
		errors.Is(err, escrow.ErrPayoutCommitted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
