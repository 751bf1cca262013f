package escrow

import "errors"

// Sentinel errors returned by the orchestrator. Handlers map these onto
// HTTP status codes; nothing here is retried automatically.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentExists   = errors.New("a payment already exists for this booking")
	ErrMissingPayment  = errors.New("no payment recorded for this booking")

	ErrForbidden    = errors.New("caller does not own this booking")
	ErrInvalidState = errors.New("operation not allowed in the current booking state")

	ErrPaymentNotSuccessful = errors.New("payment is not in a successful state")
	ErrAlreadyPaidOut       = errors.New("vendor payout already completed")
	ErrAlreadyInProgress    = errors.New("vendor payout already in progress")
	ErrInvalidPayoutState   = errors.New("vendor payout is not in a payable state")

	// ErrPayoutCommitted blocks a dispute once the payout has left pending:
	// an in-flight payout is treated as already committed.
	ErrPayoutCommitted = errors.New("payout already committed for this booking")
)
