// Package readmodel projects ticket and queue state into display form for
// the presentation layer. Pure functions over snapshots.
package readmodel

import (
	"github.com/officialjesprec/Health-Queue-sub000/internal/lifecycle"
	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/queue"
)

const (
	StageDone    = "done"
	StageCurrent = "current"
	StagePending = "pending"
)

type StageView struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type TicketView struct {
	Ticket               models.Ticket `json:"ticket"`
	StatusLabel          string        `json:"status_label"`
	Queued               bool          `json:"queued"`
	Position             int           `json:"position,omitempty"`
	EstimatedWaitMinutes int           `json:"estimated_wait_minutes,omitempty"`
	Stages               []StageView   `json:"stages"`
}

// PatientView is the caregiver/patient screen: every ticket the patient
// holds, each with its live queue placement.
type PatientView struct {
	PatientID string       `json:"patient_id"`
	Tickets   []TicketView `json:"tickets"`
}

var statusLabels = map[string]string{
	models.StatusPending:    "Pending Approval",
	models.StatusWaiting:    "Waiting",
	models.StatusUpcoming:   "Upcoming",
	models.StatusInProgress: "In Progress",
	models.StatusDelayed:    "Delayed",
	models.StatusCompleted:  "Completed",
	models.StatusRejected:   "Rejected",
}

func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return "Unknown"
}

// Stages renders the clinical journey with done/current/pending flags for
// the given ticket stage.
func Stages(stage string) []StageView {
	current := lifecycle.StageIndex(stage)
	order := lifecycle.StageOrder()
	views := make([]StageView, 0, len(order)-1)
	for i, name := range order {
		if name == models.StageCompleted {
			continue
		}
		state := StagePending
		switch {
		case current < 0:
			// Unknown stage reads as all pending.
		case i < current || stage == models.StageCompleted:
			state = StageDone
		case i == current:
			state = StageCurrent
		}
		views = append(views, StageView{Name: name, State: state})
	}
	return views
}

// Build projects one ticket against a partition snapshot. Position and wait
// are only set when the ticket is actually queued (right partition,
// non-terminal status).
func Build(ticket models.Ticket, snapshot []models.Ticket, perTicketMinutes int) TicketView {
	view := TicketView{
		Ticket:      ticket,
		StatusLabel: StatusLabel(ticket.Status),
		Stages:      Stages(ticket.Stage),
	}
	position, ok := queue.Position(snapshot, ticket.HospitalID, ticket.Department, ticket.Date, ticket.TicketID)
	if ok {
		view.Queued = true
		view.Position = position
		view.EstimatedWaitMinutes = queue.EstimateWait(position, perTicketMinutes)
	}
	return view
}

// BuildPatient projects all of a patient's tickets against the full
// snapshot they were queried from.
func BuildPatient(patientID string, own []models.Ticket, snapshot []models.Ticket, perTicketMinutes int) PatientView {
	view := PatientView{PatientID: patientID}
	for _, ticket := range own {
		view.Tickets = append(view.Tickets, Build(ticket, snapshot, perTicketMinutes))
	}
	return view
}
