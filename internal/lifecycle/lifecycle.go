// Package lifecycle holds the ticket state machine: which status and stage
// transitions are legal, how accepted bookings route by date, and the
// advance-queue decision over a partition snapshot.
package lifecycle

import (
	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/queue"
)

var statusTransitions = map[string][]string{
	"accept":   {models.StatusPending},
	"decline":  {models.StatusPending},
	"call":     {models.StatusWaiting},
	"complete": {models.StatusInProgress},
	"delay":    {models.StatusWaiting},
	"resume":   {models.StatusDelayed},
	"promote":  {models.StatusUpcoming},
}

// CanTransition reports whether action is legal from the given status.
func CanTransition(action, fromStatus string) bool {
	allowed, ok := statusTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// AcceptStatus routes an accepted booking: tickets whose visit date has
// arrived join the waiting queue, future-dated ones park as upcoming until
// their day. Dates are YYYY-MM-DD, so string order is date order.
func AcceptStatus(ticketDate, today string) string {
	if ticketDate <= today {
		return models.StatusWaiting
	}
	return models.StatusUpcoming
}

var stageOrder = []string{
	models.StageCheckIn,
	models.StageTriage,
	models.StageBilling,
	models.StageDoctor,
	models.StagePharmacy,
	models.StageCompleted,
}

// StageOrder returns the clinical journey stages in sequence, terminal last.
func StageOrder() []string {
	out := make([]string, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// NextStage returns the stage one step forward. The second return is false
// when stage is the last pre-terminal stage or unknown; the caller then
// completes the ticket's status instead of advancing further.
func NextStage(stage string) (string, bool) {
	for i, s := range stageOrder {
		if s != stage {
			continue
		}
		if i+2 >= len(stageOrder) {
			return "", false
		}
		return stageOrder[i+1], true
	}
	return "", false
}

// StageIndex returns the position of stage in the journey, -1 if unknown.
func StageIndex(stage string) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// Decision is the outcome of an advance-queue evaluation: the in-service
// ticket to complete (if any) and the queue head to promote (if any).
type Decision struct {
	CompleteID string
	PromoteID  string
}

// Advance evaluates call-next over a partition snapshot. The current
// in_progress ticket, if one exists, completes; the first waiting ticket in
// queue order is promoted. Delayed tickets keep their position but are never
// promoted. Both IDs may be empty; both mutations must land together.
func Advance(tickets []models.Ticket, hospitalID, department, date string) Decision {
	var decision Decision
	for _, ticket := range tickets {
		if ticket.HospitalID != hospitalID || ticket.Department != department || ticket.Date != date {
			continue
		}
		if ticket.Status == models.StatusInProgress {
			decision.CompleteID = ticket.TicketID
			break
		}
	}
	if next, ok := queue.Head(tickets, hospitalID, department, date, models.StatusWaiting); ok {
		decision.PromoteID = next.TicketID
	}
	return decision
}
