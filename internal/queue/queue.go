// Package queue computes queue order, positions, and wait estimates for one
// (hospital, department, date) partition. Everything here is a pure function
// over a ticket snapshot so callers can re-evaluate freely.
package queue

import (
	"sort"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
)

// DefaultPerTicketMinutes is the coarse per-position wait heuristic. It is a
// fixed constant, not a prediction from service-time history.
const DefaultPerTicketMinutes = 15

// Compute returns the partition's active queue: tickets matching the
// partition, excluding terminal statuses, ordered emergencies first and
// within each priority class by creation time.
func Compute(tickets []models.Ticket, hospitalID, department, date string) []models.Ticket {
	var queued []models.Ticket
	for _, ticket := range tickets {
		if ticket.HospitalID != hospitalID || ticket.Department != department || ticket.Date != date {
			continue
		}
		if models.IsTerminalStatus(ticket.Status) {
			continue
		}
		queued = append(queued, ticket)
	}

	sort.SliceStable(queued, func(i, j int) bool {
		if queued[i].Emergency != queued[j].Emergency {
			return queued[i].Emergency
		}
		if !queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].CreatedAt.Before(queued[j].CreatedAt)
		}
		return queued[i].TicketID < queued[j].TicketID
	})
	return queued
}

// Position returns the 1-based rank of ticketID in its partition's queue.
// The second return is false when the ticket is not queued there (wrong
// partition or terminal status); a position is only meaningful when true.
func Position(tickets []models.Ticket, hospitalID, department, date, ticketID string) (int, bool) {
	for i, ticket := range Compute(tickets, hospitalID, department, date) {
		if ticket.TicketID == ticketID {
			return i + 1, true
		}
	}
	return 0, false
}

// Head returns the first ticket in the partition queue with the given
// status, in queue order.
func Head(tickets []models.Ticket, hospitalID, department, date, status string) (models.Ticket, bool) {
	for _, ticket := range Compute(tickets, hospitalID, department, date) {
		if ticket.Status == status {
			return ticket, true
		}
	}
	return models.Ticket{}, false
}

// EstimateWait maps a queue position to estimated minutes until service.
// Callers must not invoke it for non-queued tickets; non-positive positions
// estimate to zero.
func EstimateWait(position, perTicketMinutes int) int {
	if position <= 0 {
		return 0
	}
	if perTicketMinutes <= 0 {
		perTicketMinutes = DefaultPerTicketMinutes
	}
	return position * perTicketMinutes
}
