// Package memory is an in-memory TicketStore with the same conditional
// update semantics as the postgres store. It backs tests and the
// single-process dev mode (empty DB_DSN).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/officialjesprec/Health-Queue-sub000/internal/lifecycle"
	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

type Store struct {
	mu            sync.Mutex
	tickets       map[string]models.Ticket
	notifications map[string]models.Notification
	outbox        []store.OutboxEvent
	eventSeq      int64
	requests      map[string]requestRecord
	sequence      map[string]int
}

type requestRecord struct {
	ticketID  string
	secondary string
}

func NewStore() *Store {
	return &Store{
		tickets:       make(map[string]models.Ticket),
		notifications: make(map[string]models.Notification),
		requests:      make(map[string]requestRecord),
		sequence:      make(map[string]int),
	}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.RequestID != "" {
		if record, ok := s.requests["create:"+input.RequestID]; ok {
			return s.tickets[record.ticketID], false, nil
		}
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	patientID := input.PatientID
	if patientID == "" {
		patientID = uuid.NewString()
	}

	ticket := models.Ticket{
		TicketID:     uuid.NewString(),
		TicketNumber: s.nextTicketNumber(input.HospitalID, input.Department, input.Date),
		PatientID:    patientID,
		PatientName:  input.PatientName,
		PatientPhone: input.PatientPhone,
		HospitalID:   input.HospitalID,
		Department:   input.Department,
		Service:      input.Service,
		Date:         input.Date,
		TimeSlot:     input.TimeSlot,
		Emergency:    input.Emergency,
		Status:       models.StatusPending,
		Stage:        models.StageCheckIn,
		CreatedAt:    createdAt,
		RequestID:    input.RequestID,
	}
	s.tickets[ticket.TicketID] = ticket
	if input.RequestID != "" {
		s.requests["create:"+input.RequestID] = requestRecord{ticketID: ticket.TicketID}
	}
	s.appendEvent(store.EventTicketCreated, ticket)
	return ticket, true, nil
}

func (s *Store) nextTicketNumber(hospitalID, department, date string) string {
	prefix := strings.ToUpper(department)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if prefix == "" {
		prefix = "GEN"
	}
	key := hospitalID + "|" + department + "|" + date
	s.sequence[key]++
	return fmt.Sprintf("%s-%03d", prefix, s.sequence[key])
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) QueryTickets(ctx context.Context, query store.TicketQuery) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Ticket
	for _, ticket := range s.tickets {
		if query.HospitalID != "" && ticket.HospitalID != query.HospitalID {
			continue
		}
		if query.Department != "" && ticket.Department != query.Department {
			continue
		}
		if query.Date != "" && ticket.Date != query.Date {
			continue
		}
		if query.PatientID != "" && ticket.PatientID != query.PatientID {
			continue
		}
		if query.Status != "" && ticket.Status != query.Status {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TicketID < out[j].TicketID
	})
	return out, nil
}

func (s *Store) AcceptBooking(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[input.TicketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if !lifecycle.CanTransition("accept", ticket.Status) {
		return models.Ticket{}, store.ErrInvalidState
	}

	today := input.Today
	if today == "" {
		today = time.Now().UTC().Format(models.DateLayout)
	}
	ticket.Status = lifecycle.AcceptStatus(ticket.Date, today)
	occurredAt := occurred(input.OccurredAt)
	ticket.AcceptedAt = &occurredAt
	if input.StaffID != "" {
		staffID := input.StaffID
		ticket.AssignedStaffID = &staffID
	}
	s.tickets[ticket.TicketID] = ticket
	s.appendEvent(store.EventTicketAccepted, ticket)
	return ticket, nil
}

func (s *Store) DeclineBooking(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[input.TicketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if !lifecycle.CanTransition("decline", ticket.Status) {
		return models.Ticket{}, store.ErrInvalidState
	}
	ticket.Status = models.StatusRejected
	occurredAt := occurred(input.OccurredAt)
	ticket.CompletedAt = &occurredAt
	s.tickets[ticket.TicketID] = ticket
	s.appendEvent(store.EventTicketDeclined, ticket)
	return ticket, nil
}

func (s *Store) AdvanceQueue(ctx context.Context, input store.AdvanceQueueInput) (store.AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.RequestID != "" {
		if record, ok := s.requests["advance:"+input.RequestID]; ok {
			return s.replayAdvance(record)
		}
	}

	snapshot := make([]models.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		snapshot = append(snapshot, ticket)
	}
	decision := lifecycle.Advance(snapshot, input.HospitalID, input.Department, input.Date)
	if decision.CompleteID == "" && decision.PromoteID == "" {
		if input.RequestID != "" {
			s.requests["advance:"+input.RequestID] = requestRecord{}
		}
		return store.AdvanceResult{}, store.ErrNoTicket
	}

	occurredAt := occurred(input.CalledAt)
	var result store.AdvanceResult
	if decision.CompleteID != "" {
		current := s.tickets[decision.CompleteID]
		// Conditional on the status read in the snapshot; an interleaved
		// mutation makes this leg a no-op instead of a double advance.
		if current.Status == models.StatusInProgress {
			current.Status = models.StatusCompleted
			current.CompletedAt = &occurredAt
			s.tickets[current.TicketID] = current
			s.appendEvent(store.EventTicketCompleted, current)
			completed := current
			result.Completed = &completed
		}
	}
	if decision.PromoteID != "" {
		next := s.tickets[decision.PromoteID]
		if next.Status == models.StatusWaiting {
			next.Status = models.StatusInProgress
			next.CalledAt = &occurredAt
			if input.StaffID != "" {
				staffID := input.StaffID
				next.AssignedStaffID = &staffID
			}
			s.tickets[next.TicketID] = next
			s.appendEvent(store.EventTicketCalled, next)
			promoted := next
			result.Promoted = &promoted
		}
	}

	if input.RequestID != "" {
		record := requestRecord{}
		if result.Completed != nil {
			record.secondary = result.Completed.TicketID
		}
		if result.Promoted != nil {
			record.ticketID = result.Promoted.TicketID
		}
		s.requests["advance:"+input.RequestID] = record
	}
	return result, nil
}

func (s *Store) replayAdvance(record requestRecord) (store.AdvanceResult, error) {
	if record.ticketID == "" && record.secondary == "" {
		return store.AdvanceResult{}, store.ErrNoTicket
	}
	var result store.AdvanceResult
	if record.secondary != "" {
		completed := s.tickets[record.secondary]
		result.Completed = &completed
	}
	if record.ticketID != "" {
		promoted := s.tickets[record.ticketID]
		result.Promoted = &promoted
	}
	return result, nil
}

func (s *Store) ProgressStage(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[input.TicketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if ticket.Status != models.StatusWaiting && ticket.Status != models.StatusInProgress {
		return models.Ticket{}, store.ErrInvalidState
	}

	next, ok := lifecycle.NextStage(ticket.Stage)
	if !ok {
		occurredAt := occurred(input.OccurredAt)
		ticket.Stage = models.StageCompleted
		ticket.Status = models.StatusCompleted
		ticket.CompletedAt = &occurredAt
		s.tickets[ticket.TicketID] = ticket
		s.appendEvent(store.EventTicketCompleted, ticket)
		return ticket, nil
	}
	ticket.Stage = next
	s.tickets[ticket.TicketID] = ticket
	s.appendEvent(store.EventStageAdvanced, ticket)
	return ticket, nil
}

func (s *Store) CompleteTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[input.TicketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if !lifecycle.CanTransition("complete", ticket.Status) {
		return models.Ticket{}, store.ErrInvalidState
	}
	occurredAt := occurred(input.OccurredAt)
	ticket.Status = models.StatusCompleted
	ticket.CompletedAt = &occurredAt
	s.tickets[ticket.TicketID] = ticket
	s.appendEvent(store.EventTicketCompleted, ticket)
	return ticket, nil
}

func (s *Store) DelayTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	return s.flip(input.TicketID, "delay", models.StatusDelayed, store.EventTicketDelayed)
}

func (s *Store) ResumeTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	return s.flip(input.TicketID, "resume", models.StatusWaiting, store.EventTicketResumed)
}

func (s *Store) flip(ticketID, action, toStatus, eventType string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if !lifecycle.CanTransition(action, ticket.Status) {
		return models.Ticket{}, store.ErrInvalidState
	}
	ticket.Status = toStatus
	s.tickets[ticket.TicketID] = ticket
	s.appendEvent(eventType, ticket)
	return ticket, nil
}

func (s *Store) PromoteUpcoming(ctx context.Context, today string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, ticket := range s.tickets {
		if ticket.Status != models.StatusUpcoming || ticket.Date > today {
			continue
		}
		ticket.Status = models.StatusWaiting
		s.tickets[id] = ticket
		s.appendEvent(store.EventTicketAccepted, ticket)
		count++
	}
	return count, nil
}

// MarkNotified flips the sticky notified flag. It returns false when the
// flag was already set, so a racing second evaluation cannot re-fire.
func (s *Store) MarkNotified(ctx context.Context, ticketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return false, store.ErrTicketNotFound
	}
	if ticket.Notified {
		return false, nil
	}
	ticket.Notified = true
	s.tickets[ticketID] = ticket
	return true, nil
}

func (s *Store) InsertNotification(ctx context.Context, notification models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.NotificationID == "" {
		notification.NotificationID = uuid.NewString()
	}
	s.notifications[notification.NotificationID] = notification
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, patientID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for _, notification := range s.notifications {
		if notification.PatientID != patientID || notification.Dismissed {
			continue
		}
		out = append(out, notification)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DismissNotification(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[notificationID]
	if !ok {
		return store.ErrNotificationNotFound
	}
	notification.Dismissed = true
	s.notifications[notificationID] = notification
	return nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.OutboxEvent
	for _, event := range s.outbox {
		if event.Seq <= afterSeq {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) appendEvent(eventType string, ticket models.Ticket) {
	payload, err := json.Marshal(store.NewEventPayload(ticket))
	if err != nil {
		return
	}
	s.eventSeq++
	s.outbox = append(s.outbox, store.OutboxEvent{
		Seq:       s.eventSeq,
		EventID:   uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
}

func occurred(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
