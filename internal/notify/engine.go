// Package notify is the reminder engine: a periodic sweep over today's
// active tickets that fires at most one reminder per ticket, ever.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/queue"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

// Broadcaster pushes a fired reminder to the patient's live feed. The engine
// works without one; the persisted feed is the source of truth.
type Broadcaster interface {
	NotifyPatient(notification models.Notification)
}

type Config struct {
	PerTicketMinutes   int
	LeadMinutes        int
	AlmostNextPosition int
	Now                func() time.Time
}

type Engine struct {
	store              store.TicketStore
	broadcaster        Broadcaster
	perTicketMinutes   int
	leadMinutes        int
	almostNextPosition int
	now                func() time.Time
}

func NewEngine(ticketStore store.TicketStore, broadcaster Broadcaster, cfg Config) *Engine {
	perTicket := cfg.PerTicketMinutes
	if perTicket <= 0 {
		perTicket = queue.DefaultPerTicketMinutes
	}
	lead := cfg.LeadMinutes
	if lead <= 0 {
		lead = 10
	}
	almostNext := cfg.AlmostNextPosition
	if almostNext <= 0 {
		almostNext = 3
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:              ticketStore,
		broadcaster:        broadcaster,
		perTicketMinutes:   perTicket,
		leadMinutes:        lead,
		almostNextPosition: almostNext,
		now:                now,
	}
}

// Run performs one evaluation sweep. A failure on one ticket never stops the
// sweep for the rest.
func (e *Engine) Run(ctx context.Context) error {
	now := e.now()
	today := now.Format(models.DateLayout)

	tickets, err := e.store.QueryTickets(ctx, store.TicketQuery{Date: today})
	if err != nil {
		return err
	}

	for _, ticket := range tickets {
		if ticket.Notified || models.IsTerminalStatus(ticket.Status) {
			continue
		}
		notification, ok := e.evaluate(ticket, tickets, now)
		if !ok {
			continue
		}
		if err := e.fire(ctx, ticket, notification); err != nil {
			log.Printf("reminder fire error ticket=%s: %v", ticket.TicketID, err)
		}
	}
	return nil
}

// evaluate applies the trigger rules in priority order; the first match
// wins, so a ticket gets at most one reminder per sweep (and the sticky
// notified flag makes it at most one per lifetime).
func (e *Engine) evaluate(ticket models.Ticket, snapshot []models.Ticket, now time.Time) (models.Notification, bool) {
	if notification, ok := e.timeRule(ticket, now); ok {
		return notification, true
	}
	return e.proximityRule(ticket, snapshot)
}

func (e *Engine) timeRule(ticket models.Ticket, now time.Time) (models.Notification, bool) {
	slotTime, err := ParseSlot(ticket.TimeSlot, ticket.Date, now)
	if err != nil {
		// Walk-in sentinel or malformed slot: the rule does not apply.
		return models.Notification{}, false
	}
	minutes := MinutesUntil(slotTime, now)
	if minutes <= 0 || minutes > e.leadMinutes {
		return models.Notification{}, false
	}
	return e.newNotification(ticket, "Upcoming Appointment",
		fmt.Sprintf("Your %s appointment (%s) starts in %d minutes.", ticket.Department, ticket.TicketNumber, minutes)), true
}

func (e *Engine) proximityRule(ticket models.Ticket, snapshot []models.Ticket) (models.Notification, bool) {
	if ticket.Status != models.StatusWaiting {
		return models.Notification{}, false
	}
	position, ok := queue.Position(snapshot, ticket.HospitalID, ticket.Department, ticket.Date, ticket.TicketID)
	if !ok || position > e.almostNextPosition {
		return models.Notification{}, false
	}
	wait := queue.EstimateWait(position, e.perTicketMinutes)
	return e.newNotification(ticket, "Almost Next",
		fmt.Sprintf("You are number %d in the %s queue, about %d minutes to go.", position, ticket.Department, wait)), true
}

func (e *Engine) newNotification(ticket models.Ticket, title, message string) models.Notification {
	return models.Notification{
		NotificationID: uuid.NewString(),
		PatientID:      ticket.PatientID,
		TicketID:       ticket.TicketID,
		Title:          title,
		Message:        message,
		Type:           models.NotificationTypeReminder,
		CreatedAt:      e.now(),
	}
}

// fire flips the sticky flag first; only the sweep that wins the flip emits,
// so concurrent evaluators cannot duplicate a reminder.
func (e *Engine) fire(ctx context.Context, ticket models.Ticket, notification models.Notification) error {
	marked, err := e.store.MarkNotified(ctx, ticket.TicketID)
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}
	if err := e.store.InsertNotification(ctx, notification); err != nil {
		return err
	}
	if e.broadcaster != nil {
		e.broadcaster.NotifyPatient(notification)
	}
	return nil
}

// Start runs the engine on a fixed cadence until ctx is cancelled.
func Start(ctx context.Context, interval time.Duration, engine *Engine) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.Run(ctx); err != nil {
				log.Printf("reminder sweep error: %v", err)
			}
		}
	}
}
