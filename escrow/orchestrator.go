package escrow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mehulsinha73/servicelink/models"
	"github.com/mehulsinha73/servicelink/notifications"
	"github.com/mehulsinha73/servicelink/payments"
	"github.com/mehulsinha73/servicelink/utils"
)

const defaultPayoutTimeout = 20 * time.Second

// markServiceCompletedFrom lists the statuses a vendor may complete from.
var markServiceCompletedFrom = []string{
	models.BookingStatusInProgress,
	models.BookingStatusConfirmed,
	models.BookingStatusScheduled,
}

// Orchestrator is the authoritative mutator of booking and payment status
// and the sole caller of the payout gateways. Both the HTTP handlers and
// the transition scheduler go through it.
type Orchestrator struct {
	ledger        Ledger
	gateways      map[string]payments.Gateway
	notifier      notifications.Notifier
	payoutTimeout time.Duration
}

func NewOrchestrator(ledger Ledger, gateways map[string]payments.Gateway, notifier notifications.Notifier) *Orchestrator {
	return &Orchestrator{
		ledger:        ledger,
		gateways:      gateways,
		notifier:      notifier,
		payoutTimeout: defaultPayoutTimeout,
	}
}

type CaptureInput struct {
	BookingID      uuid.UUID
	Amount         float64
	Currency       string
	Gateway        string
	GatewayOrderID string
	GatewayTxnID   string
}

// CapturePayment records a verified capture into escrow: it creates the
// payment with the platform fee already split out and confirms the booking,
// both in one transaction.
func (o *Orchestrator) CapturePayment(ctx context.Context, in CaptureInput) (*models.Payment, error) {
	if _, err := o.ledger.BookingByID(ctx, in.BookingID); err != nil {
		return nil, err
	}

	fee, vendorAmount := utils.SplitAmount(in.Amount)
	payment := &models.Payment{
		BookingID:          in.BookingID,
		TotalAmount:        in.Amount,
		PlatformFee:        fee,
		VendorAmount:       vendorAmount,
		Currency:           in.Currency,
		Gateway:            in.Gateway,
		Status:             models.PaymentStatusSuccess,
		VendorPayoutStatus: models.PayoutStatusPending,
	}
	if in.GatewayOrderID != "" {
		payment.GatewayOrderID = &in.GatewayOrderID
	}
	if in.GatewayTxnID != "" {
		payment.GatewayTxnID = &in.GatewayTxnID
	}

	if err := o.ledger.CreatePaymentConfirmBooking(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// RespondToBooking records the vendor's accept/reject decision. Acceptance
// is allowed from pending and from confirmed, so a customer who paid before
// the vendor decided does not strand the booking. Rejection is only allowed
// while the booking is still pending; once money is captured the customer
// must go through the dispute flow instead.
func (o *Orchestrator) RespondToBooking(ctx context.Context, bookingID, vendorID uuid.UUID, accept bool) error {
	booking, err := o.ledger.BookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	vendor, err := o.ledger.VendorForService(ctx, booking.VendorServiceID)
	if err != nil {
		return err
	}
	if vendor.ID != vendorID {
		return ErrForbidden
	}

	from := []string{models.BookingStatusPending}
	vendorStatus := models.VendorStatusAccepted
	bookingStatus := models.BookingStatusScheduled
	if accept {
		from = append(from, models.BookingStatusConfirmed)
	} else {
		vendorStatus = models.VendorStatusRejected
		bookingStatus = models.BookingStatusCancelled
	}

	ok, err := o.ledger.SetVendorResponse(ctx, bookingID, from, vendorStatus, bookingStatus)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}

	subject, body := "Booking Accepted!", "<h1>Booking Accepted</h1><p>The vendor has accepted your booking request.</p>"
	if !accept {
		subject, body = "Booking Rejected", "<h1>Booking Rejected</h1><p>The vendor has rejected your booking request.</p>"
	}
	o.notify(ctx, booking.CustomerID, subject, body)
	return nil
}

// MarkServiceCompleted is the vendor's claim that the work is done. Allowed
// from in_progress, confirmed or scheduled.
func (o *Orchestrator) MarkServiceCompleted(ctx context.Context, bookingID, vendorID uuid.UUID) error {
	booking, err := o.ledger.BookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	vendor, err := o.ledger.VendorForService(ctx, booking.VendorServiceID)
	if err != nil {
		return err
	}
	if vendor.ID != vendorID {
		return ErrForbidden
	}

	ok, err := o.ledger.TransitionBooking(ctx, bookingID, markServiceCompletedFrom, models.BookingStatusServiceCompleted)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}

	o.notify(ctx, booking.CustomerID, "Service Completed",
		"<h1>Service Completed</h1><p>Your vendor has marked the service as completed. Please confirm or dispute the work from your bookings page.</p>")
	return nil
}

type ConfirmInput struct {
	BookingID uuid.UUID
	UserID    uuid.UUID
	Confirmed bool
	Rating    int
	Comment   string
}

type PayoutResult struct {
	// RequiresDispute is set when the customer answered confirmed=false;
	// nothing was mutated and the dispute endpoint should be used instead.
	RequiresDispute bool

	PayoutID           string
	VendorPayoutStatus string
}

// ConfirmCompletion is the customer's acceptance of a completed service. On
// acceptance it finalizes the booking, optionally records a review, and
// releases the vendor payout exactly once.
func (o *Orchestrator) ConfirmCompletion(ctx context.Context, in ConfirmInput) (*PayoutResult, error) {
	booking, err := o.ledger.BookingByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != in.UserID {
		return nil, ErrForbidden
	}
	if booking.Status != models.BookingStatusServiceCompleted {
		return nil, ErrInvalidState
	}

	if !in.Confirmed {
		return &PayoutResult{RequiresDispute: true}, nil
	}

	ok, err := o.ledger.TransitionBooking(ctx, in.BookingID,
		[]string{models.BookingStatusServiceCompleted}, models.BookingStatusUserConfirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	if in.Rating > 0 {
		o.recordReview(ctx, booking, in.Rating, in.Comment)
	}

	payment, err := o.ledger.PaymentByBooking(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	return o.executePayout(ctx, payment, []string{models.PayoutStatusPending})
}

// recordReview stores the optional review left alongside a confirmation.
// Review bookkeeping never blocks the payout.
func (o *Orchestrator) recordReview(ctx context.Context, booking *models.Booking, rating int, comment string) {
	vendor, err := o.ledger.VendorForService(ctx, booking.VendorServiceID)
	if err != nil {
		log.Printf("Could not resolve vendor for review on booking %s: %v", booking.ID, err)
		return
	}
	review := &models.Review{
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		VendorID:   vendor.ID,
		Rating:     rating,
		Comment:    comment,
	}
	if err := o.ledger.CreateReview(ctx, review); err != nil {
		log.Printf("Failed to record review for booking %s: %v", booking.ID, err)
	}
}

type DisputeInput struct {
	BookingID uuid.UUID
	UserID    uuid.UUID
	Reason    string
}

// DisputeCompletion rejects a completed service. An open dispute blocks the
// vendor payout until an admin resolves it.
func (o *Orchestrator) DisputeCompletion(ctx context.Context, in DisputeInput) (*models.Dispute, error) {
	booking, err := o.ledger.BookingByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != in.UserID {
		return nil, ErrForbidden
	}
	if booking.Status != models.BookingStatusServiceCompleted {
		return nil, ErrInvalidState
	}

	dispute := &models.Dispute{
		BookingID:  in.BookingID,
		CustomerID: in.UserID,
		Reason:     in.Reason,
		Status:     models.DisputeStatusOpen,
	}
	ok, err := o.ledger.OpenDispute(ctx, dispute, models.BookingStatusServiceCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	if vendor, err := o.ledger.VendorForService(ctx, booking.VendorServiceID); err == nil {
		o.notify(ctx, vendor.ID, "Booking Disputed",
			"<h1>Booking Disputed</h1><p>The customer has disputed the completed service. The payout is on hold until the dispute is resolved.</p>")
	}
	return dispute, nil
}

// TriggerPayout is the administrative payout path. Unlike the confirmation
// path it may also re-claim a previously failed payout for retry.
func (o *Orchestrator) TriggerPayout(ctx context.Context, paymentID uuid.UUID) (*PayoutResult, error) {
	payment, err := o.ledger.PaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return o.executePayout(ctx, payment, []string{models.PayoutStatusPending, models.PayoutStatusFailed})
}

// executePayout runs the shared payout algorithm: claim exclusivity with a
// conditional update, call the gateway once, settle the claim. A claim that
// cannot be resolved (unknown gateway outcome) stays in_progress for manual
// reconciliation rather than risking a duplicate transfer.
func (o *Orchestrator) executePayout(ctx context.Context, payment *models.Payment, claimFrom []string) (*PayoutResult, error) {
	if payment.Status != models.PaymentStatusSuccess {
		return nil, ErrPaymentNotSuccessful
	}
	if payment.VendorPayoutStatus == models.PayoutStatusPaid {
		return nil, ErrAlreadyPaidOut
	}

	claimed, err := o.ledger.ClaimVendorPayout(ctx, payment.ID, claimFrom)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, o.payoutClaimError(ctx, payment.ID)
	}

	booking, err := o.ledger.BookingByID(ctx, payment.BookingID)
	if err != nil {
		return nil, o.failPayout(ctx, payment.ID, fmt.Errorf("resolve booking: %w", err))
	}
	vendor, err := o.ledger.VendorForService(ctx, booking.VendorServiceID)
	if err != nil {
		return nil, o.failPayout(ctx, payment.ID, fmt.Errorf("resolve vendor: %w", err))
	}
	if vendor.PayoutAccount == nil || *vendor.PayoutAccount == "" {
		return nil, o.failPayout(ctx, payment.ID, fmt.Errorf("vendor %s has no payout account registered", vendor.ID))
	}
	gateway, ok := o.gateways[payment.Gateway]
	if !ok {
		return nil, o.failPayout(ctx, payment.ID, fmt.Errorf("unknown payment gateway %q", payment.Gateway))
	}

	payoutCtx, cancel := context.WithTimeout(ctx, o.payoutTimeout)
	defer cancel()

	payoutID, err := gateway.Payout(payoutCtx, utils.MinorUnits(payment.VendorAmount), payment.Currency, *vendor.PayoutAccount, payment.ID.String())
	if err != nil {
		if errors.Is(err, payments.ErrOutcomeUnknown) || errors.Is(err, context.DeadlineExceeded) {
			// The transfer may have landed. Leave the claim in place and
			// force administrative reconciliation.
			log.Printf("🔥 Payout outcome unknown for payment %s, left in_progress: %v", payment.ID, err)
			return nil, fmt.Errorf("payout outcome unknown, reconciliation required: %w", err)
		}
		return nil, o.failPayout(ctx, payment.ID, err)
	}

	if err := o.ledger.SettleVendorPayout(ctx, payment.ID, models.PayoutStatusPaid, &payoutID); err != nil {
		log.Printf("🔥 CRITICAL: payout %s succeeded at gateway but could not be settled: %v", payoutID, err)
		return nil, err
	}

	o.notify(ctx, vendor.ID, "Payment Received",
		fmt.Sprintf("<h1>Payment Received</h1><p>Your payout of %.2f %s has been transferred to your registered account.</p>", payment.VendorAmount, payment.Currency))

	return &PayoutResult{PayoutID: payoutID, VendorPayoutStatus: models.PayoutStatusPaid}, nil
}

// payoutClaimError maps a lost claim onto the state the winner left behind.
func (o *Orchestrator) payoutClaimError(ctx context.Context, paymentID uuid.UUID) error {
	current, err := o.ledger.PaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	switch current.VendorPayoutStatus {
	case models.PayoutStatusPaid:
		return ErrAlreadyPaidOut
	case models.PayoutStatusInProgress:
		return ErrAlreadyInProgress
	default:
		return ErrInvalidPayoutState
	}
}

// failPayout settles the claim as failed and surfaces the cause. The
// payment can then be retried through the administrative path.
func (o *Orchestrator) failPayout(ctx context.Context, paymentID uuid.UUID, cause error) error {
	if err := o.ledger.SettleVendorPayout(ctx, paymentID, models.PayoutStatusFailed, nil); err != nil {
		log.Printf("🔥 CRITICAL: could not mark payout failed for payment %s: %v", paymentID, err)
	}
	return fmt.Errorf("vendor payout failed: %w", cause)
}

// notify resolves the user and delivers a message, best-effort.
func (o *Orchestrator) notify(ctx context.Context, userID uuid.UUID, subject, body string) {
	user, err := o.ledger.UserByID(ctx, userID)
	if err != nil {
		log.Printf("Could not resolve user %s for notification: %v", userID, err)
		return
	}
	if err := o.notifier.Notify(ctx, *user, subject, body); err != nil {
		log.Printf("Failed to notify %s: %v", user.Email, err)
	}
}
