package store

import (
	"context"
	"time"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
)

type CreateTicketInput struct {
	RequestID    string
	PatientID    string
	PatientName  string
	PatientPhone string
	HospitalID   string
	Department   string
	Service      string
	Date         string
	TimeSlot     string
	Emergency    bool
	CreatedAt    time.Time
}

type AdvanceQueueInput struct {
	RequestID  string
	HospitalID string
	Department string
	Date       string
	StaffID    string
	CalledAt   time.Time
}

// TicketActionInput covers the single-ticket staff actions (accept, decline,
// progress, complete, delay, resume).
type TicketActionInput struct {
	RequestID  string
	TicketID   string
	StaffID    string
	Today      string
	OccurredAt time.Time
}

// AdvanceResult reports what one advance-queue call changed. Completed and
// Promoted are nil when the partition had no ticket in that role.
type AdvanceResult struct {
	Completed *models.Ticket
	Promoted  *models.Ticket
}

type TicketQuery struct {
	HospitalID string
	Department string
	Date       string
	PatientID  string
	Status     string
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	QueryTickets(ctx context.Context, query TicketQuery) ([]models.Ticket, error)

	AcceptBooking(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	DeclineBooking(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	AdvanceQueue(ctx context.Context, input AdvanceQueueInput) (AdvanceResult, error)
	ProgressStage(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	CompleteTicket(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	DelayTicket(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	ResumeTicket(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	PromoteUpcoming(ctx context.Context, today string) (int, error)

	MarkNotified(ctx context.Context, ticketID string) (bool, error)
	InsertNotification(ctx context.Context, notification models.Notification) error
	ListNotifications(ctx context.Context, patientID string) ([]models.Notification, error)
	DismissNotification(ctx context.Context, notificationID string) error

	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]OutboxEvent, error)
}
