package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

const (
	testDate   = "2025-06-02"
	futureDate = "2025-06-09"
)

func create(t *testing.T, s *Store, offset time.Duration, emergency bool) models.Ticket {
	t.Helper()
	ticket, _, err := s.CreateTicket(context.Background(), store.CreateTicketInput{
		PatientName: "Test Patient",
		HospitalID:  "h1",
		Department:  "cardiology",
		Date:        testDate,
		TimeSlot:    models.SlotASAP,
		Emergency:   emergency,
		CreatedAt:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC).Add(offset),
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func accept(t *testing.T, s *Store, ticketID string) models.Ticket {
	t.Helper()
	ticket, err := s.AcceptBooking(context.Background(), store.TicketActionInput{TicketID: ticketID, Today: testDate})
	if err != nil {
		t.Fatalf("accept booking: %v", err)
	}
	return ticket
}

func advance(t *testing.T, s *Store) store.AdvanceResult {
	t.Helper()
	result, err := s.AdvanceQueue(context.Background(), store.AdvanceQueueInput{
		RequestID:  uuid.NewString(),
		HospitalID: "h1",
		Department: "cardiology",
		Date:       testDate,
	})
	if err != nil {
		t.Fatalf("advance queue: %v", err)
	}
	return result
}

func countInProgress(t *testing.T, s *Store) int {
	t.Helper()
	tickets, err := s.QueryTickets(context.Background(), store.TicketQuery{
		HospitalID: "h1",
		Department: "cardiology",
		Date:       testDate,
		Status:     models.StatusInProgress,
	})
	if err != nil {
		t.Fatalf("query tickets: %v", err)
	}
	return len(tickets)
}

func TestCreateTicketDefaults(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)

	if ticket.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", ticket.Status)
	}
	if ticket.Stage != models.StageCheckIn {
		t.Fatalf("stage = %s, want check_in", ticket.Stage)
	}
	if ticket.PatientID == "" {
		t.Fatal("patient id not issued")
	}
	if ticket.Notified {
		t.Fatal("new ticket must not be notified")
	}
	if ticket.TicketNumber != "CAR-001" {
		t.Fatalf("ticket number = %s, want CAR-001", ticket.TicketNumber)
	}
}

func TestCreateTicketIdempotentByRequestID(t *testing.T) {
	s := NewStore()
	requestID := uuid.NewString()
	input := store.CreateTicketInput{
		RequestID:   requestID,
		PatientName: "Test Patient",
		HospitalID:  "h1",
		Department:  "cardiology",
		Date:        testDate,
	}
	first, created, err := s.CreateTicket(context.Background(), input)
	if err != nil || !created {
		t.Fatalf("first create = (%v, %v)", created, err)
	}
	second, created, err := s.CreateTicket(context.Background(), input)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("replay reported as a fresh create")
	}
	if second.TicketID != first.TicketID {
		t.Fatalf("replay returned different ticket %s != %s", second.TicketID, first.TicketID)
	}
}

func TestAcceptRoutesByDate(t *testing.T) {
	s := NewStore()

	today := create(t, s, 0, false)
	if got := accept(t, s, today.TicketID); got.Status != models.StatusWaiting {
		t.Fatalf("same-day accept status = %s, want waiting", got.Status)
	}

	future, _, err := s.CreateTicket(context.Background(), store.CreateTicketInput{
		PatientName: "Future Patient",
		HospitalID:  "h1",
		Department:  "cardiology",
		Date:        futureDate,
	})
	if err != nil {
		t.Fatalf("create future ticket: %v", err)
	}
	got, err := s.AcceptBooking(context.Background(), store.TicketActionInput{TicketID: future.TicketID, Today: testDate})
	if err != nil {
		t.Fatalf("accept future: %v", err)
	}
	if got.Status != models.StatusUpcoming {
		t.Fatalf("future accept status = %s, want upcoming", got.Status)
	}
}

func TestAcceptRejectsNonPending(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)
	accept(t, s, ticket.TicketID)

	_, err := s.AcceptBooking(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID, Today: testDate})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("second accept error = %v, want ErrInvalidState", err)
	}
}

func TestDeclineIsTerminalRejection(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)

	declined, err := s.DeclineBooking(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != models.StatusRejected {
		t.Fatalf("declined status = %s, want rejected", declined.Status)
	}
	if _, err := s.AcceptBooking(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID, Today: testDate}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("accept after decline error = %v, want ErrInvalidState", err)
	}
}

func TestAdvanceCompletesCurrentAndPromotesNext(t *testing.T) {
	s := NewStore()
	x := create(t, s, 0, false)
	y := create(t, s, time.Minute, false)
	accept(t, s, x.TicketID)
	accept(t, s, y.TicketID)

	first := advance(t, s)
	if first.Completed != nil {
		t.Fatalf("first advance completed %s, want none", first.Completed.TicketID)
	}
	if first.Promoted == nil || first.Promoted.TicketID != x.TicketID {
		t.Fatalf("first advance promoted %+v, want %s", first.Promoted, x.TicketID)
	}

	second := advance(t, s)
	if second.Completed == nil || second.Completed.TicketID != x.TicketID {
		t.Fatalf("second advance completed %+v, want %s", second.Completed, x.TicketID)
	}
	if second.Promoted == nil || second.Promoted.TicketID != y.TicketID {
		t.Fatalf("second advance promoted %+v, want %s", second.Promoted, y.TicketID)
	}

	gotX, _ := s.GetTicket(context.Background(), x.TicketID)
	gotY, _ := s.GetTicket(context.Background(), y.TicketID)
	if gotX.Status != models.StatusCompleted {
		t.Fatalf("x status = %s, want completed", gotX.Status)
	}
	if gotY.Status != models.StatusInProgress {
		t.Fatalf("y status = %s, want in_progress", gotY.Status)
	}
}

func TestAdvanceWithEmptyQueueCompletesCurrentOnly(t *testing.T) {
	s := NewStore()
	x := create(t, s, 0, false)
	accept(t, s, x.TicketID)
	advance(t, s)

	result := advance(t, s)
	if result.Completed == nil || result.Completed.TicketID != x.TicketID {
		t.Fatalf("completed = %+v, want %s", result.Completed, x.TicketID)
	}
	if result.Promoted != nil {
		t.Fatalf("promoted = %+v, want none", result.Promoted)
	}
	if n := countInProgress(t, s); n != 0 {
		t.Fatalf("in_progress count = %d, want 0", n)
	}
}

func TestAdvanceEmptyPartitionReturnsErrNoTicket(t *testing.T) {
	s := NewStore()
	_, err := s.AdvanceQueue(context.Background(), store.AdvanceQueueInput{
		RequestID:  uuid.NewString(),
		HospitalID: "h1",
		Department: "cardiology",
		Date:       testDate,
	})
	if !errors.Is(err, store.ErrNoTicket) {
		t.Fatalf("error = %v, want ErrNoTicket", err)
	}
}

func TestAdvanceNeverLeavesTwoInProgress(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		ticket := create(t, s, time.Duration(i)*time.Minute, i == 3)
		accept(t, s, ticket.TicketID)
	}

	for i := 0; i < 7; i++ {
		_, err := s.AdvanceQueue(context.Background(), store.AdvanceQueueInput{
			RequestID:  uuid.NewString(),
			HospitalID: "h1",
			Department: "cardiology",
			Date:       testDate,
		})
		if err != nil && !errors.Is(err, store.ErrNoTicket) {
			t.Fatalf("advance %d: %v", i, err)
		}
		if n := countInProgress(t, s); n > 1 {
			t.Fatalf("after advance %d: %d tickets in_progress", i, n)
		}
	}
}

func TestAdvancePromotesEmergencyFirst(t *testing.T) {
	s := NewStore()
	regular := create(t, s, 0, false)
	emergency := create(t, s, time.Minute, true)
	accept(t, s, regular.TicketID)
	accept(t, s, emergency.TicketID)

	result := advance(t, s)
	if result.Promoted == nil || result.Promoted.TicketID != emergency.TicketID {
		t.Fatalf("promoted %+v, want emergency %s", result.Promoted, emergency.TicketID)
	}
}

func TestAdvanceSkipsDelayedTickets(t *testing.T) {
	s := NewStore()
	delayed := create(t, s, 0, false)
	waiting := create(t, s, time.Minute, false)
	accept(t, s, delayed.TicketID)
	accept(t, s, waiting.TicketID)
	if _, err := s.DelayTicket(context.Background(), store.TicketActionInput{TicketID: delayed.TicketID}); err != nil {
		t.Fatalf("delay: %v", err)
	}

	result := advance(t, s)
	if result.Promoted == nil || result.Promoted.TicketID != waiting.TicketID {
		t.Fatalf("promoted %+v, want %s", result.Promoted, waiting.TicketID)
	}

	// Resumed tickets rejoin at their original position.
	resumed, err := s.ResumeTicket(context.Background(), store.TicketActionInput{TicketID: delayed.TicketID})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != models.StatusWaiting {
		t.Fatalf("resumed status = %s, want waiting", resumed.Status)
	}
}

func TestAdvanceIdempotentByRequestID(t *testing.T) {
	s := NewStore()
	x := create(t, s, 0, false)
	y := create(t, s, time.Minute, false)
	accept(t, s, x.TicketID)
	accept(t, s, y.TicketID)

	requestID := uuid.NewString()
	input := store.AdvanceQueueInput{
		RequestID:  requestID,
		HospitalID: "h1",
		Department: "cardiology",
		Date:       testDate,
	}
	first, err := s.AdvanceQueue(context.Background(), input)
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	second, err := s.AdvanceQueue(context.Background(), input)
	if err != nil {
		t.Fatalf("replayed advance: %v", err)
	}
	if second.Promoted == nil || first.Promoted == nil || second.Promoted.TicketID != first.Promoted.TicketID {
		t.Fatalf("replay promoted %+v, want %+v", second.Promoted, first.Promoted)
	}

	// The replay must not have advanced the queue again.
	gotY, _ := s.GetTicket(context.Background(), y.TicketID)
	if gotY.Status != models.StatusWaiting {
		t.Fatalf("y status = %s, want waiting", gotY.Status)
	}
}

func TestProgressStageWalksJourneyThenCompletes(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)
	accept(t, s, ticket.TicketID)

	want := []string{
		models.StageTriage,
		models.StageBilling,
		models.StageDoctor,
		models.StagePharmacy,
	}
	for _, stage := range want {
		got, err := s.ProgressStage(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID})
		if err != nil {
			t.Fatalf("progress to %s: %v", stage, err)
		}
		if got.Stage != stage {
			t.Fatalf("stage = %s, want %s", got.Stage, stage)
		}
		if got.Status != models.StatusWaiting {
			t.Fatalf("status changed to %s during stage walk", got.Status)
		}
	}

	final, err := s.ProgressStage(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID})
	if err != nil {
		t.Fatalf("final progress: %v", err)
	}
	if final.Stage != models.StageCompleted || final.Status != models.StatusCompleted {
		t.Fatalf("final = (%s, %s), want (completed, completed)", final.Stage, final.Status)
	}

	if _, err := s.ProgressStage(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("progress after completion error = %v, want ErrInvalidState", err)
	}
}

func TestProgressStageRequiresActiveStatus(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)

	_, err := s.ProgressStage(context.Background(), store.TicketActionInput{TicketID: ticket.TicketID})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("progress on pending error = %v, want ErrInvalidState", err)
	}
}

func TestMarkNotifiedIsSticky(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)

	marked, err := s.MarkNotified(context.Background(), ticket.TicketID)
	if err != nil || !marked {
		t.Fatalf("first mark = (%v, %v), want (true, nil)", marked, err)
	}
	marked, err = s.MarkNotified(context.Background(), ticket.TicketID)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if marked {
		t.Fatal("second mark reported a flip")
	}

	if _, err := s.MarkNotified(context.Background(), uuid.NewString()); !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("unknown ticket error = %v, want ErrTicketNotFound", err)
	}
}

func TestPromoteUpcoming(t *testing.T) {
	s := NewStore()
	future, _, err := s.CreateTicket(context.Background(), store.CreateTicketInput{
		PatientName: "Future Patient",
		HospitalID:  "h1",
		Department:  "cardiology",
		Date:        futureDate,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AcceptBooking(context.Background(), store.TicketActionInput{TicketID: future.TicketID, Today: testDate}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	count, err := s.PromoteUpcoming(context.Background(), testDate)
	if err != nil {
		t.Fatalf("premature promote: %v", err)
	}
	if count != 0 {
		t.Fatalf("promoted %d tickets before their day", count)
	}

	count, err = s.PromoteUpcoming(context.Background(), futureDate)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if count != 1 {
		t.Fatalf("promoted %d tickets, want 1", count)
	}
	got, _ := s.GetTicket(context.Background(), future.TicketID)
	if got.Status != models.StatusWaiting {
		t.Fatalf("status = %s, want waiting", got.Status)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.GetTicket(context.Background(), uuid.NewString()); !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("error = %v, want ErrTicketNotFound", err)
	}
}

func TestOutboxRecordsLifecycle(t *testing.T) {
	s := NewStore()
	ticket := create(t, s, 0, false)
	accept(t, s, ticket.TicketID)
	advance(t, s)

	events, err := s.ListOutboxEvents(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []string{store.EventTicketCreated, store.EventTicketAccepted, store.EventTicketCalled}
	if len(events) != len(want) {
		t.Fatalf("event count = %d, want %d", len(events), len(want))
	}
	for i, eventType := range want {
		if events[i].Type != eventType {
			t.Fatalf("event[%d] = %s, want %s", i, events[i].Type, eventType)
		}
		if i > 0 && events[i].Seq <= events[i-1].Seq {
			t.Fatalf("event sequence not increasing: %d then %d", events[i-1].Seq, events[i].Seq)
		}
	}

	// Paging on the sequence resumes exactly after the cursor, even when
	// neighboring events carry the same timestamp.
	rest, err := s.ListOutboxEvents(context.Background(), events[0].Seq, 10)
	if err != nil {
		t.Fatalf("list after cursor: %v", err)
	}
	if len(rest) != len(events)-1 {
		t.Fatalf("resumed count = %d, want %d", len(rest), len(events)-1)
	}
	if rest[0].EventID != events[1].EventID {
		t.Fatalf("resume skipped to %s, want %s", rest[0].EventID, events[1].EventID)
	}
}
