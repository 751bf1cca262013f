package escrow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehulsinha73/servicelink/escrow"
	"github.com/mehulsinha73/servicelink/escrow/escrowtest"
	"github.com/mehulsinha73/servicelink/models"
	"github.com/mehulsinha73/servicelink/payments"
)

type fixture struct {
	ledger   *escrowtest.MemoryLedger
	gateway  *escrowtest.RecordingGateway
	notifier *escrowtest.RecordingNotifier
	orch     *escrow.Orchestrator

	customer *models.User
	vendor   *models.User
	service  *models.VendorService
	booking  *models.Booking
}

func newFixture(bookingStatus string) *fixture {
	ledger := escrowtest.NewMemoryLedger()
	gateway := &escrowtest.RecordingGateway{PayoutID: "trf_123"}
	notifier := &escrowtest.RecordingNotifier{}

	account := "acc_vendor_1"
	customer := &models.User{ID: uuid.New(), FullName: "Asha Rao", Email: "asha@example.com", Role: "customer"}
	vendor := &models.User{ID: uuid.New(), FullName: "Ravi Kumar", Email: "ravi@example.com", Role: "vendor", PayoutAccount: &account}
	service := &models.VendorService{ID: uuid.New(), VendorID: vendor.ID, Title: "Deep Cleaning", Price: 150.00, Currency: "INR"}
	booking := &models.Booking{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		VendorServiceID: service.ID,
		ScheduledDate:   "2026-09-01",
		ScheduledTime:   "10:00",
		Status:          bookingStatus,
		VendorStatus:    models.VendorStatusAccepted,
	}

	ledger.Users[customer.ID] = customer
	ledger.Users[vendor.ID] = vendor
	ledger.Services[service.ID] = service
	ledger.Bookings[booking.ID] = booking

	orch := escrow.NewOrchestrator(ledger, map[string]payments.Gateway{"razorpay": gateway}, notifier)
	return &fixture{
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		orch:     orch,
		customer: customer,
		vendor:   vendor,
		service:  service,
		booking:  booking,
	}
}

// addPayment seeds a successful escrow capture for the fixture booking.
func (f *fixture) addPayment(payoutStatus string) *models.Payment {
	payment := &models.Payment{
		ID:                 uuid.New(),
		BookingID:          f.booking.ID,
		TotalAmount:        150.00,
		PlatformFee:        15.00,
		VendorAmount:       135.00,
		Currency:           "INR",
		Gateway:            "razorpay",
		Status:             models.PaymentStatusSuccess,
		VendorPayoutStatus: payoutStatus,
	}
	f.ledger.Payments[payment.ID] = payment
	return payment
}

func TestCapturePaymentSplitsFee(t *testing.T) {
	f := newFixture(models.BookingStatusPending)

	payment, err := f.orch.CapturePayment(context.Background(), escrow.CaptureInput{
		BookingID:      f.booking.ID,
		Amount:         150.00,
		Currency:       "INR",
		Gateway:        "razorpay",
		GatewayOrderID: "order_1",
		GatewayTxnID:   "pay_1",
	})
	require.NoError(t, err)

	assert.Equal(t, 15.00, payment.PlatformFee)
	assert.Equal(t, 135.00, payment.VendorAmount)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, models.PayoutStatusPending, payment.VendorPayoutStatus)

	booking, err := f.ledger.BookingByID(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
}

func TestCapturePaymentConflictAndNotFound(t *testing.T) {
	f := newFixture(models.BookingStatusPending)
	f.addPayment(models.PayoutStatusPending)

	_, err := f.orch.CapturePayment(context.Background(), escrow.CaptureInput{
		BookingID: f.booking.ID,
		Amount:    150.00,
		Currency:  "INR",
		Gateway:   "razorpay",
	})
	assert.ErrorIs(t, err, escrow.ErrPaymentExists)

	_, err = f.orch.CapturePayment(context.Background(), escrow.CaptureInput{
		BookingID: uuid.New(),
		Amount:    150.00,
		Currency:  "INR",
		Gateway:   "razorpay",
	})
	assert.ErrorIs(t, err, escrow.ErrBookingNotFound)
}

func TestCapturePaymentRejectsExpiredBooking(t *testing.T) {
	f := newFixture(models.BookingStatusCancelled)

	_, err := f.orch.CapturePayment(context.Background(), escrow.CaptureInput{
		BookingID: f.booking.ID,
		Amount:    150.00,
		Currency:  "INR",
		Gateway:   "razorpay",
	})
	assert.ErrorIs(t, err, escrow.ErrInvalidState,
		"a late capture must not resurrect a cancelled booking")

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Empty(t, f.ledger.Payments, "no money may be taken for a booking that will not be serviced")

	for _, status := range []string{
		models.BookingStatusInProgress,
		models.BookingStatusUserConfirmed,
		models.BookingStatusDisputed,
	} {
		g := newFixture(status)
		_, err := g.orch.CapturePayment(context.Background(), escrow.CaptureInput{
			BookingID: g.booking.ID,
			Amount:    150.00,
			Currency:  "INR",
			Gateway:   "razorpay",
		})
		assert.ErrorIs(t, err, escrow.ErrInvalidState, "capture from %s", status)
	}
}

func TestCapturePaymentAfterVendorAcceptance(t *testing.T) {
	f := newFixture(models.BookingStatusScheduled)

	_, err := f.orch.CapturePayment(context.Background(), escrow.CaptureInput{
		BookingID: f.booking.ID,
		Amount:    150.00,
		Currency:  "INR",
		Gateway:   "razorpay",
	})
	require.NoError(t, err)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
}

func TestCapturePaymentRetryAfterProgression(t *testing.T) {
	// A webhook retry arriving after the booking moved on must still read
	// as already-processed, not as a state error.
	f := newFixture(models.BookingStatusInProgress)
	f.addPayment(models.PayoutStatusPending)

	_, err := f.orch.CapturePayment(context.Background(), escrow.CaptureInput{
		BookingID: f.booking.ID,
		Amount:    150.00,
		Currency:  "INR",
		Gateway:   "razorpay",
	})
	assert.ErrorIs(t, err, escrow.ErrPaymentExists)
}

func TestRespondToBooking(t *testing.T) {
	f := newFixture(models.BookingStatusPending)
	f.booking.VendorStatus = models.VendorStatusPending

	err := f.orch.RespondToBooking(context.Background(), f.booking.ID, f.vendor.ID, true)
	require.NoError(t, err)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusScheduled, booking.Status)
	assert.Equal(t, models.VendorStatusAccepted, booking.VendorStatus)
	assert.Equal(t, 1, f.notifier.MessageCount())

	err = f.orch.RespondToBooking(context.Background(), f.booking.ID, f.vendor.ID, true)
	assert.ErrorIs(t, err, escrow.ErrInvalidState)
}

func TestRespondToBookingAfterEarlyPayment(t *testing.T) {
	// The customer paid before the vendor decided: the booking is confirmed
	// with the vendor response still pending. Acceptance must still work or
	// the booking would be stranded for the scheduler.
	f := newFixture(models.BookingStatusConfirmed)
	f.booking.VendorStatus = models.VendorStatusPending
	f.addPayment(models.PayoutStatusPending)

	err := f.orch.RespondToBooking(context.Background(), f.booking.ID, f.vendor.ID, true)
	require.NoError(t, err)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusScheduled, booking.Status)
	assert.Equal(t, models.VendorStatusAccepted, booking.VendorStatus)
}

func TestRespondToBookingRejectionOnlyWhilePending(t *testing.T) {
	f := newFixture(models.BookingStatusConfirmed)
	f.booking.VendorStatus = models.VendorStatusPending
	f.addPayment(models.PayoutStatusPending)

	err := f.orch.RespondToBooking(context.Background(), f.booking.ID, f.vendor.ID, false)
	assert.ErrorIs(t, err, escrow.ErrInvalidState,
		"a paid booking cannot be silently rejected")

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)

	pending := newFixture(models.BookingStatusPending)
	pending.booking.VendorStatus = models.VendorStatusPending
	require.NoError(t, pending.orch.RespondToBooking(context.Background(), pending.booking.ID, pending.vendor.ID, false))

	rejected, _ := pending.ledger.BookingByID(context.Background(), pending.booking.ID)
	assert.Equal(t, models.BookingStatusCancelled, rejected.Status)
	assert.Equal(t, models.VendorStatusRejected, rejected.VendorStatus)
}

func TestRespondToBookingWrongVendor(t *testing.T) {
	f := newFixture(models.BookingStatusPending)

	err := f.orch.RespondToBooking(context.Background(), f.booking.ID, uuid.New(), true)
	assert.ErrorIs(t, err, escrow.ErrForbidden)
}

func TestMarkServiceCompleted(t *testing.T) {
	f := newFixture(models.BookingStatusScheduled)

	err := f.orch.MarkServiceCompleted(context.Background(), f.booking.ID, f.vendor.ID)
	require.NoError(t, err)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusServiceCompleted, booking.Status)

	// A second completion claim is a state conflict.
	err = f.orch.MarkServiceCompleted(context.Background(), f.booking.ID, f.vendor.ID)
	assert.ErrorIs(t, err, escrow.ErrInvalidState)
}

func TestMarkServiceCompletedWrongVendor(t *testing.T) {
	f := newFixture(models.BookingStatusScheduled)

	err := f.orch.MarkServiceCompleted(context.Background(), f.booking.ID, uuid.New())
	assert.ErrorIs(t, err, escrow.ErrForbidden)
}

func TestConfirmCompletionReleasesPayoutOnce(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	payment := f.addPayment(models.PayoutStatusPending)

	result, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: true,
		Rating:    5,
		Comment:   "Great work",
	})
	require.NoError(t, err)
	assert.Equal(t, "trf_123", result.PayoutID)
	assert.Equal(t, models.PayoutStatusPaid, result.VendorPayoutStatus)

	require.Equal(t, 1, f.gateway.PayoutCallCount())
	call := f.gateway.PayoutCalls[0]
	assert.Equal(t, int64(13500), call.AmountMinor)
	assert.Equal(t, "acc_vendor_1", call.Destination)

	stored, _ := f.ledger.PaymentByID(context.Background(), payment.ID)
	assert.Equal(t, models.PayoutStatusPaid, stored.VendorPayoutStatus)
	require.NotNil(t, stored.VendorPayoutID)
	assert.Equal(t, "trf_123", *stored.VendorPayoutID)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusUserConfirmed, booking.Status)

	require.Len(t, f.ledger.Reviews, 1)
	assert.Equal(t, 5, f.ledger.Reviews[0].Rating)

	// The vendor hears about the payout.
	require.Equal(t, 1, f.notifier.MessageCount())
	assert.Equal(t, f.vendor.ID, f.notifier.Messages[0].UserID)

	// A repeat confirmation must not reach the gateway again.
	_, err = f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: true,
	})
	assert.ErrorIs(t, err, escrow.ErrInvalidState)
	assert.Equal(t, 1, f.gateway.PayoutCallCount())
}

func TestConfirmCompletionRejectionPointsToDispute(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	f.addPayment(models.PayoutStatusPending)

	result, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: false,
	})
	require.NoError(t, err)
	assert.True(t, result.RequiresDispute)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusServiceCompleted, booking.Status)
	assert.Equal(t, 0, f.gateway.PayoutCallCount())
}

func TestConfirmCompletionGuards(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	f.addPayment(models.PayoutStatusPending)

	_, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    uuid.New(),
		Confirmed: true,
	})
	assert.ErrorIs(t, err, escrow.ErrForbidden)

	_, err = f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: uuid.New(),
		UserID:    f.customer.ID,
		Confirmed: true,
	})
	assert.ErrorIs(t, err, escrow.ErrBookingNotFound)

	inProgress := newFixture(models.BookingStatusInProgress)
	_, err = inProgress.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: inProgress.booking.ID,
		UserID:    inProgress.customer.ID,
		Confirmed: true,
	})
	assert.ErrorIs(t, err, escrow.ErrInvalidState)
}

func TestConfirmCompletionMissingPayment(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)

	_, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: true,
	})
	assert.ErrorIs(t, err, escrow.ErrMissingPayment)
}

func TestConfirmCompletionPaymentNotSuccessful(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	payment := f.addPayment(models.PayoutStatusPending)
	payment.Status = models.PaymentStatusPending

	_, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: true,
	})
	assert.ErrorIs(t, err, escrow.ErrPaymentNotSuccessful)
	assert.Equal(t, 0, f.gateway.PayoutCallCount())
}

func TestConcurrentPayoutAttemptsReachGatewayOnce(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	payment := f.addPayment(models.PayoutStatusPending)
	f.gateway.PayoutDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
			BookingID: f.booking.ID,
			UserID:    f.customer.ID,
			Confirmed: true,
		})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.orch.TriggerPayout(context.Background(), payment.ID)
	}()
	wg.Wait()

	assert.Equal(t, 1, f.gateway.PayoutCallCount(), "exactly one payout must reach the gateway")

	winners, losers := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		default:
			losers++
			assert.True(t,
				errorsIsAny(err, escrow.ErrAlreadyInProgress, escrow.ErrAlreadyPaidOut, escrow.ErrInvalidState),
				"unexpected loser error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	stored, _ := f.ledger.PaymentByID(context.Background(), payment.ID)
	assert.Equal(t, models.PayoutStatusPaid, stored.VendorPayoutStatus)
}

func TestPayoutUnknownOutcomeStaysInProgress(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	payment := f.addPayment(models.PayoutStatusPending)
	f.gateway.PayoutErr = fmt.Errorf("connection reset: %w", payments.ErrOutcomeUnknown)

	_, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: true,
	})
	require.Error(t, err)

	stored, _ := f.ledger.PaymentByID(context.Background(), payment.ID)
	assert.Equal(t, models.PayoutStatusInProgress, stored.VendorPayoutStatus,
		"an unknown gateway outcome must never revert the claim to pending")

	// The stuck claim blocks further attempts until reconciled.
	_, err = f.orch.TriggerPayout(context.Background(), payment.ID)
	assert.ErrorIs(t, err, escrow.ErrAlreadyInProgress)
	assert.Equal(t, 1, f.gateway.PayoutCallCount())
}

func TestPayoutDefinitiveFailureIsRetryable(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	payment := f.addPayment(models.PayoutStatusPending)
	f.gateway.PayoutErr = fmt.Errorf("destination account blocked")

	_, err := f.orch.ConfirmCompletion(context.Background(), escrow.ConfirmInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Confirmed: true,
	})
	require.Error(t, err)

	stored, _ := f.ledger.PaymentByID(context.Background(), payment.ID)
	assert.Equal(t, models.PayoutStatusFailed, stored.VendorPayoutStatus)

	// The administrative path may retry a failed payout.
	f.gateway.PayoutErr = nil
	result, err := f.orch.TriggerPayout(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPaid, result.VendorPayoutStatus)
	assert.Equal(t, 2, f.gateway.PayoutCallCount())
}

func TestTriggerPayoutGuards(t *testing.T) {
	f := newFixture(models.BookingStatusUserConfirmed)
	payment := f.addPayment(models.PayoutStatusPaid)

	_, err := f.orch.TriggerPayout(context.Background(), payment.ID)
	assert.ErrorIs(t, err, escrow.ErrAlreadyPaidOut)

	_, err = f.orch.TriggerPayout(context.Background(), uuid.New())
	assert.ErrorIs(t, err, escrow.ErrPaymentNotFound)

	assert.Equal(t, 0, f.gateway.PayoutCallCount())
}

func TestDisputeCompletion(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	f.addPayment(models.PayoutStatusPending)

	dispute, err := f.orch.DisputeCompletion(context.Background(), escrow.DisputeInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Reason:    "work was left unfinished",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusDisputed, booking.Status)
	require.Len(t, f.ledger.Disputes, 1)
}

func TestDisputeCompletionInvalidStateLeavesPaymentUntouched(t *testing.T) {
	f := newFixture(models.BookingStatusInProgress)
	payment := f.addPayment(models.PayoutStatusPending)

	_, err := f.orch.DisputeCompletion(context.Background(), escrow.DisputeInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Reason:    "work was left unfinished",
	})
	assert.ErrorIs(t, err, escrow.ErrInvalidState)

	stored, _ := f.ledger.PaymentByID(context.Background(), payment.ID)
	assert.Equal(t, models.PayoutStatusPending, stored.VendorPayoutStatus)
	assert.Empty(t, f.ledger.Disputes)
}

func TestDisputeCompletionBlockedOncePayoutCommitted(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)
	f.addPayment(models.PayoutStatusInProgress)

	_, err := f.orch.DisputeCompletion(context.Background(), escrow.DisputeInput{
		BookingID: f.booking.ID,
		UserID:    f.customer.ID,
		Reason:    "work was left unfinished",
	})
	assert.ErrorIs(t, err, escrow.ErrPayoutCommitted)

	booking, _ := f.ledger.BookingByID(context.Background(), f.booking.ID)
	assert.Equal(t, models.BookingStatusServiceCompleted, booking.Status)
}

func TestDisputeCompletionWrongUser(t *testing.T) {
	f := newFixture(models.BookingStatusServiceCompleted)

	_, err := f.orch.DisputeCompletion(context.Background(), escrow.DisputeInput{
		BookingID: f.booking.ID,
		UserID:    uuid.New(),
		Reason:    "work was left unfinished",
	})
	assert.ErrorIs(t, err, escrow.ErrForbidden)
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
