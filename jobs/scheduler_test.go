package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehulsinha73/servicelink/escrow/escrowtest"
	"github.com/mehulsinha73/servicelink/models"
)

type schedulerFixture struct {
	ledger    *escrowtest.MemoryLedger
	notifier  *escrowtest.RecordingNotifier
	scheduler *Scheduler
	customer  *models.User
	vendor    *models.User
	service   *models.VendorService
}

func newSchedulerFixture() *schedulerFixture {
	ledger := escrowtest.NewMemoryLedger()
	notifier := &escrowtest.RecordingNotifier{}

	customer := &models.User{ID: uuid.New(), FullName: "Asha Rao", Email: "asha@example.com", Role: "customer"}
	vendor := &models.User{ID: uuid.New(), FullName: "Ravi Kumar", Email: "ravi@example.com", Role: "vendor"}
	service := &models.VendorService{ID: uuid.New(), VendorID: vendor.ID, Title: "Deep Cleaning", Price: 150.00, Currency: "INR"}

	ledger.Users[customer.ID] = customer
	ledger.Users[vendor.ID] = vendor
	ledger.Services[service.ID] = service

	return &schedulerFixture{
		ledger:    ledger,
		notifier:  notifier,
		scheduler: NewScheduler(ledger, notifier, time.UTC),
		customer:  customer,
		vendor:    vendor,
		service:   service,
	}
}

func (f *schedulerFixture) addBooking(status, vendorStatus string, scheduled time.Time) *models.Booking {
	booking := &models.Booking{
		ID:              uuid.New(),
		CustomerID:      f.customer.ID,
		VendorServiceID: f.service.ID,
		ScheduledDate:   scheduled.UTC().Format("2006-01-02"),
		ScheduledTime:   scheduled.UTC().Format("15:04"),
		Status:          status,
		VendorStatus:    vendorStatus,
	}
	f.ledger.Bookings[booking.ID] = booking
	return booking
}

func TestRunOnceActivatesDueBooking(t *testing.T) {
	f := newSchedulerFixture()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	booking := f.addBooking(models.BookingStatusScheduled, models.VendorStatusAccepted, now.Add(-2*time.Minute))

	f.scheduler.RunOnce(context.Background(), now)

	stored, err := f.ledger.BookingByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusInProgress, stored.Status)
	assert.Equal(t, 2, f.notifier.MessageCount(), "customer and vendor are both told the booking started")

	// Once in progress the booking is no longer a candidate.
	f.scheduler.RunOnce(context.Background(), now.Add(5*time.Minute))
	assert.Equal(t, 2, f.notifier.MessageCount())
}

func TestRunOnceActivatesSlightlyEarly(t *testing.T) {
	f := newSchedulerFixture()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	booking := f.addBooking(models.BookingStatusConfirmed, models.VendorStatusAccepted, now.Add(4*time.Minute))

	f.scheduler.RunOnce(context.Background(), now)

	stored, _ := f.ledger.BookingByID(context.Background(), booking.ID)
	assert.Equal(t, models.BookingStatusInProgress, stored.Status)
}

func TestRunOnceExpiresStaleBooking(t *testing.T) {
	f := newSchedulerFixture()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	booking := f.addBooking(models.BookingStatusScheduled, models.VendorStatusAccepted, now.Add(-45*time.Minute))

	f.scheduler.RunOnce(context.Background(), now)

	stored, _ := f.ledger.BookingByID(context.Background(), booking.ID)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
	require.NotNil(t, stored.Notes)
	assert.Contains(t, *stored.Notes, "[system] auto-cancelled")
	assert.Equal(t, 2, f.notifier.MessageCount())
}

func TestRunOnceLeavesDeadZoneUntouched(t *testing.T) {
	f := newSchedulerFixture()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	booking := f.addBooking(models.BookingStatusScheduled, models.VendorStatusAccepted, now.Add(-15*time.Minute))

	f.scheduler.RunOnce(context.Background(), now)

	stored, _ := f.ledger.BookingByID(context.Background(), booking.ID)
	assert.Equal(t, models.BookingStatusScheduled, stored.Status,
		"a booking past its window but not yet expired must not be touched")
	assert.Equal(t, 0, f.notifier.MessageCount())
}

func TestRunOnceSkipsUnparseableSchedule(t *testing.T) {
	f := newSchedulerFixture()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	broken := f.addBooking(models.BookingStatusScheduled, models.VendorStatusAccepted, now)
	broken.ScheduledTime = "ten o'clock"
	due := f.addBooking(models.BookingStatusScheduled, models.VendorStatusAccepted, now.Add(-1*time.Minute))

	f.scheduler.RunOnce(context.Background(), now)

	storedBroken, _ := f.ledger.BookingByID(context.Background(), broken.ID)
	assert.Equal(t, models.BookingStatusScheduled, storedBroken.Status)

	storedDue, _ := f.ledger.BookingByID(context.Background(), due.ID)
	assert.Equal(t, models.BookingStatusInProgress, storedDue.Status,
		"one bad row must not stop the rest of the run")
}

func TestRunOnceIgnoresUnacceptedBookings(t *testing.T) {
	f := newSchedulerFixture()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	booking := f.addBooking(models.BookingStatusConfirmed, models.VendorStatusPending, now)

	f.scheduler.RunOnce(context.Background(), now)

	stored, _ := f.ledger.BookingByID(context.Background(), booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
}

func TestStopWaitsForStartupScan(t *testing.T) {
	f := newSchedulerFixture()

	f.scheduler.Start()
	f.scheduler.Stop()

	assert.Equal(t, 1, f.ledger.DueBookingsCalls,
		"the startup scan must have finished by the time Stop returns")
}

func TestTickSkipsWhileRunInFlight(t *testing.T) {
	f := newSchedulerFixture()

	f.scheduler.running.Store(true)
	f.scheduler.tick()

	assert.Equal(t, 0, f.ledger.DueBookingsCalls, "an overlapping tick must not start a second scan")

	f.scheduler.running.Store(false)
	f.scheduler.tick()
	assert.Equal(t, 1, f.ledger.DueBookingsCalls)
}
