package store

import (
	"encoding/json"
	"time"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
)

// OutboxEvent is the change feed the presentation layer polls or streams.
// Consumers treat any event as "refetch current state" for its partition.
// Seq is the pagination cursor: monotonic, with no gaps a poller could
// lose events across, unlike a timestamp that two events may share.
type OutboxEvent struct {
	Seq       int64           `json:"seq"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	EventTicketCreated   = "ticket.created"
	EventTicketAccepted  = "ticket.accepted"
	EventTicketDeclined  = "ticket.declined"
	EventTicketCalled    = "ticket.called"
	EventTicketCompleted = "ticket.completed"
	EventTicketDelayed   = "ticket.delayed"
	EventTicketResumed   = "ticket.resumed"
	EventStageAdvanced   = "ticket.stage_advanced"
)

type EventPayload struct {
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	PatientID    string `json:"patient_id"`
	HospitalID   string `json:"hospital_id"`
	Department   string `json:"department"`
	Date         string `json:"date"`
	Status       string `json:"status"`
	Stage        string `json:"stage"`
}

func NewEventPayload(ticket models.Ticket) EventPayload {
	return EventPayload{
		TicketID:     ticket.TicketID,
		TicketNumber: ticket.TicketNumber,
		PatientID:    ticket.PatientID,
		HospitalID:   ticket.HospitalID,
		Department:   ticket.Department,
		Date:         ticket.Date,
		Status:       ticket.Status,
		Stage:        ticket.Stage,
	}
}
