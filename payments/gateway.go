package payments

import (
	"context"
	"errors"
)

// ErrOutcomeUnknown marks a gateway call whose result could not be
// determined (timeout, connection dropped after the request was sent).
// Callers must not retry such a call blindly: the transfer may have gone
// through on the gateway side.
var ErrOutcomeUnknown = errors.New("gateway call outcome unknown")

// Gateway is the payment capability the orchestrator depends on. Amounts
// are always integer minor units (paise, cents).
type Gateway interface {
	Name() string

	// Charge creates a gateway order/intent for the given amount and
	// returns its id.
	Charge(ctx context.Context, amountMinor int64, currency, receipt string) (orderID string, err error)

	// Payout transfers the vendor share to the vendor's registered
	// destination account and returns the gateway transfer id.
	Payout(ctx context.Context, amountMinor int64, currency, destination, reference string) (payoutID string, err error)

	// VerifyWebhookSignature checks the signature over a raw webhook body.
	// No field of the body may be trusted before this returns true.
	VerifyWebhookSignature(body []byte, signature string) bool

	// VerifyCheckoutSignature checks the signature a client submits after
	// completing checkout for the given order and gateway payment id.
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
}
