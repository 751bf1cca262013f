package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mehulsinha73/servicelink/escrow"
	"github.com/mehulsinha73/servicelink/models"
	"github.com/mehulsinha73/servicelink/notifications"
)

const (
	// activationWindow is how far around the scheduled instant a booking is
	// moved to in_progress.
	activationWindow = 5 * time.Minute

	// expiryAfter is how long past the scheduled instant a never-activated
	// booking is cancelled.
	expiryAfter = 30 * time.Minute

	// runDeadline keeps a single run shorter than the 5-minute tick so runs
	// never pile up behind a slow store or notifier.
	runDeadline = 4 * time.Minute
)

var candidateStatuses = []string{
	models.BookingStatusConfirmed,
	models.BookingStatusScheduled,
}

// Scheduler advances bookings whose status depends purely on elapsed time:
// activation around the scheduled instant and expiry when a booking was
// never started. It runs every five minutes plus once at process start.
type Scheduler struct {
	ledger   escrow.Ledger
	notifier notifications.Notifier
	loc      *time.Location

	cron    *cron.Cron
	running atomic.Bool
	startup sync.WaitGroup
}

func NewScheduler(ledger escrow.Ledger, notifier notifications.Notifier, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		ledger:   ledger,
		notifier: notifier,
		loc:      loc,
	}
}

// Start schedules the recurring scan and kicks off an immediate first run.
func (s *Scheduler) Start() {
	s.cron = cron.New()
	s.cron.AddFunc("*/5 * * * *", s.tick)
	s.cron.Start()

	// Cron only waits for jobs it started itself, so the startup run is
	// tracked separately for Stop.
	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		s.tick()
	}()
	log.Println("✅ Booking transition scheduler started.")
}

// Stop cancels the recurring scan and waits for an in-flight run to finish,
// including the startup run.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.startup.Wait()
	log.Println("Booking transition scheduler stopped.")
}

// tick guards RunOnce against overlapping executions: if the previous run
// is still going the tick is skipped, never run concurrently.
func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("⚠️ Previous transition run still in progress, skipping this tick.")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), runDeadline)
	defer cancel()

	s.RunOnce(ctx, time.Now())
}

// RunOnce performs a single finite scan at the given instant.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	log.Println("Running job: booking transitions...")

	bookings, err := s.ledger.DueBookings(ctx, candidateStatuses)
	if err != nil {
		log.Printf("Error loading due bookings: %v", err)
		return
	}

	activated, expired := 0, 0
	for i := range bookings {
		if ctx.Err() != nil {
			log.Printf("⚠️ Transition run hit its deadline after %d booking(s), stopping early.", i)
			break
		}

		booking := &bookings[i]
		instant, err := booking.ScheduledInstant(s.loc)
		if err != nil {
			log.Printf("⚠️ Booking %s has unparseable schedule (%q %q), skipping: %v",
				booking.ID, booking.ScheduledDate, booking.ScheduledTime, err)
			continue
		}

		// A booking is either activated or expired in one run, never both:
		// the branches are exclusive and every write is conditioned on the
		// status observed above.
		elapsed := now.Sub(instant)
		switch {
		case absDuration(elapsed) <= activationWindow:
			if s.activate(ctx, booking) {
				activated++
			}
		case elapsed > expiryAfter:
			if s.expire(ctx, booking, now) {
				expired++
			}
		}
	}

	log.Printf("Transition run finished: %d activated, %d expired of %d candidate(s).",
		activated, expired, len(bookings))
}

func (s *Scheduler) activate(ctx context.Context, booking *models.Booking) bool {
	ok, err := s.ledger.TransitionBooking(ctx, booking.ID,
		[]string{booking.Status}, models.BookingStatusInProgress)
	if err != nil {
		log.Printf("Error activating booking %s: %v", booking.ID, err)
		return false
	}
	if !ok {
		log.Printf("Booking %s changed status concurrently, skipping activation.", booking.ID)
		return false
	}

	s.notifyParties(ctx, booking, "Your Booking Has Started",
		"<h1>Booking Started</h1><p>Your scheduled service is now in progress.</p>")
	return true
}

func (s *Scheduler) expire(ctx context.Context, booking *models.Booking, now time.Time) bool {
	ok, err := s.ledger.TransitionBooking(ctx, booking.ID,
		[]string{booking.Status}, models.BookingStatusCancelled)
	if err != nil {
		log.Printf("Error expiring booking %s: %v", booking.ID, err)
		return false
	}
	if !ok {
		log.Printf("Booking %s changed status concurrently, skipping expiry.", booking.ID)
		return false
	}

	note := fmt.Sprintf("\n[system] auto-cancelled at %s: booking was never started within %d minutes of its scheduled time",
		now.UTC().Format(time.RFC3339), int(expiryAfter.Minutes()))
	if err := s.ledger.AppendBookingNote(ctx, booking.ID, note); err != nil {
		log.Printf("Failed to append audit note to booking %s: %v", booking.ID, err)
	}

	s.notifyParties(ctx, booking, "Booking Cancelled",
		"<h1>Booking Cancelled</h1><p>Your booking was automatically cancelled because the service was never started.</p>")
	return true
}

// notifyParties informs customer and vendor, best-effort.
func (s *Scheduler) notifyParties(ctx context.Context, booking *models.Booking, subject, body string) {
	if customer, err := s.ledger.UserByID(ctx, booking.CustomerID); err == nil {
		if err := s.notifier.Notify(ctx, *customer, subject, body); err != nil {
			log.Printf("Failed to notify customer %s: %v", customer.Email, err)
		}
	} else {
		log.Printf("Could not resolve customer for booking %s: %v", booking.ID, err)
	}

	if vendor, err := s.ledger.VendorForService(ctx, booking.VendorServiceID); err == nil {
		if err := s.notifier.Notify(ctx, *vendor, subject, body); err != nil {
			log.Printf("Failed to notify vendor %s: %v", vendor.Email, err)
		}
	} else {
		log.Printf("Could not resolve vendor for booking %s: %v", booking.ID, err)
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
