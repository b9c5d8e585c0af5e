package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/officialjesprec/Health-Queue-sub000/internal/lifecycle"
	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

const ticketNumberPad = 3

const ticketColumns = `ticket_id, ticket_number, patient_id, patient_name, patient_phone,
	hospital_id, department, service, visit_date, time_slot, emergency,
	status, stage, assigned_staff_id, payment_status, notified, created_at,
	request_id, accepted_at, called_at, completed_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findTicketByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	seq, err := nextTicketNumber(ctx, tx, input.HospitalID, input.Department, input.Date)
	if err != nil {
		return models.Ticket{}, false, err
	}
	formattedNumber := fmt.Sprintf("%s-%0*d", numberPrefix(input.Department), ticketNumberPad, seq)

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
		TicketNumber: formattedNumber,
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

	if _, err = tx.Exec(ctx, `
		INSERT INTO tickets (
			ticket_id, request_id, ticket_number, patient_id, patient_name, patient_phone,
			hospital_id, department, service, visit_date, time_slot, emergency,
			status, stage, payment_status, notified, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, ticket.TicketID, nullIfEmpty(ticket.RequestID), ticket.TicketNumber, ticket.PatientID,
		ticket.PatientName, ticket.PatientPhone, ticket.HospitalID, ticket.Department,
		ticket.Service, ticket.Date, ticket.TimeSlot, ticket.Emergency,
		ticket.Status, ticket.Stage, "unpaid", false, ticket.CreatedAt); err != nil {
		// A concurrent create with the same request_id won the unique
		// constraint; replay its ticket instead of surfacing the conflict.
		if input.RequestID != "" && isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE request_id = $1`, input.RequestID)
			existing, scanErr := scanTicket(row)
			if scanErr != nil {
				return models.Ticket{}, false, scanErr
			}
			err = nil
			return existing, false, nil
		}
		return models.Ticket{}, false, err
	}
	ticket.PaymentStatus = "unpaid"

	if err = insertOutboxEvent(ctx, tx, store.EventTicketCreated, ticket); err != nil {
		return models.Ticket{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func numberPrefix(department string) string {
	prefix := strings.ToUpper(department)
	prefix = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, prefix)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if prefix == "" {
		prefix = "GEN"
	}
	return prefix
}

func nextTicketNumber(ctx context.Context, tx pgx.Tx, hospitalID, department, date string) (int, error) {
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO ticket_sequences (hospital_id, department, visit_date, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (hospital_id, department, visit_date)
		DO UPDATE SET seq = ticket_sequences.seq + 1
		RETURNING seq
	`, hospitalID, department, date).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func findTicketByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Ticket, bool, error) {
	if requestID == "" {
		return models.Ticket{}, false, nil
	}
	row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE request_id = $1`, requestID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) QueryTickets(ctx context.Context, query store.TicketQuery) ([]models.Ticket, error) {
	sqlQuery := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	var args []interface{}
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		sqlQuery += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	add("hospital_id", query.HospitalID)
	add("department", query.Department)
	add("visit_date", query.Date)
	add("patient_id", query.PatientID)
	add("status", query.Status)
	sqlQuery += " ORDER BY created_at ASC, ticket_id ASC"

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) AcceptBooking(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ticket, err := lockTicket(ctx, tx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !lifecycle.CanTransition("accept", ticket.Status) {
		err = store.ErrInvalidState
		return models.Ticket{}, err
	}

	today := input.Today
	if today == "" {
		today = time.Now().UTC().Format(models.DateLayout)
	}
	newStatus := lifecycle.AcceptStatus(ticket.Date, today)
	occurredAt := occurred(input.OccurredAt)

	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET status = $1, accepted_at = $2, assigned_staff_id = COALESCE($3::text, assigned_staff_id)
		WHERE ticket_id = $4 AND status = $5
		RETURNING `+ticketColumns+`
	`, newStatus, occurredAt, nullIfEmpty(input.StaffID), input.TicketID, models.StatusPending)
	ticket, err = scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
		}
		return models.Ticket{}, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventTicketAccepted, ticket); err != nil {
		return models.Ticket{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) DeclineBooking(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	return s.conditionalStatus(ctx, input, models.StatusPending, models.StatusRejected, store.EventTicketDeclined, true)
}

func (s *Store) CompleteTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	return s.conditionalStatus(ctx, input, models.StatusInProgress, models.StatusCompleted, store.EventTicketCompleted, true)
}

func (s *Store) DelayTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	return s.conditionalStatus(ctx, input, models.StatusWaiting, models.StatusDelayed, store.EventTicketDelayed, false)
}

func (s *Store) ResumeTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	return s.conditionalStatus(ctx, input, models.StatusDelayed, models.StatusWaiting, store.EventTicketResumed, false)
}

// conditionalStatus flips status only when the row still holds the expected
// prior status, so two staff devices acting at once cannot double-apply.
func (s *Store) conditionalStatus(ctx context.Context, input store.TicketActionInput, fromStatus, toStatus, eventType string, terminal bool) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	occurredAt := occurred(input.OccurredAt)
	var completedAt interface{}
	if terminal {
		completedAt = occurredAt
	}
	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET status = $1, completed_at = COALESCE($2::timestamptz, completed_at)
		WHERE ticket_id = $3 AND status = $4
		RETURNING `+ticketColumns+`
	`, toStatus, completedAt, input.TicketID, fromStatus)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetTicket(ctx, input.TicketID); getErr != nil {
				err = getErr
			} else {
				err = store.ErrInvalidState
			}
		}
		return models.Ticket{}, err
	}

	if err = insertOutboxEvent(ctx, tx, eventType, ticket); err != nil {
		return models.Ticket{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) AdvanceQueue(ctx context.Context, input store.AdvanceQueueInput) (store.AdvanceResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.AdvanceResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "advance_queue", input.RequestID)
	if err != nil {
		return store.AdvanceResult{}, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return store.AdvanceResult{}, err
		}
		if empty {
			return store.AdvanceResult{}, store.ErrNoTicket
		}
		return existing, nil
	}

	// One implicit counter per partition: concurrent advances must
	// serialize, not split the queue between them. The advisory lock is
	// transaction-scoped, so the second caller blocks here and then sees
	// the first caller's committed result.
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		input.HospitalID+"|"+input.Department+"|"+input.Date); err != nil {
		return store.AdvanceResult{}, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	var result store.AdvanceResult

	// Complete the in-service ticket, if one exists. The status condition
	// on the UPDATE makes an interleaved single-ticket action a no-op on
	// this leg rather than a double completion.
	row := tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE hospital_id = $1 AND department = $2 AND visit_date = $3 AND status = $4
		ORDER BY called_at ASC
		LIMIT 1
		FOR UPDATE
	`, input.HospitalID, input.Department, input.Date, models.StatusInProgress)
	current, err := scanTicket(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.AdvanceResult{}, err
	}
	if err == nil {
		row = tx.QueryRow(ctx, `
			UPDATE tickets
			SET status = $1, completed_at = $2
			WHERE ticket_id = $3 AND status = $4
			RETURNING `+ticketColumns+`
		`, models.StatusCompleted, calledAt, current.TicketID, models.StatusInProgress)
		completed, scanErr := scanTicket(row)
		if scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows) {
			err = scanErr
			return store.AdvanceResult{}, err
		}
		if scanErr == nil {
			result.Completed = &completed
			if err = insertOutboxEvent(ctx, tx, store.EventTicketCompleted, completed); err != nil {
				return store.AdvanceResult{}, err
			}
		}
	}
	err = nil

	// Promote the queue head: emergencies first, then first come first
	// served. Delayed tickets hold their position but are skipped here.
	row = tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE hospital_id = $1 AND department = $2 AND visit_date = $3 AND status = $4
		ORDER BY emergency DESC, created_at ASC, ticket_id ASC
		LIMIT 1
		FOR UPDATE
	`, input.HospitalID, input.Department, input.Date, models.StatusWaiting)
	next, err := scanTicket(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.AdvanceResult{}, err
	}
	if err == nil {
		row = tx.QueryRow(ctx, `
			UPDATE tickets
			SET status = $1, called_at = $2, assigned_staff_id = COALESCE($3::text, assigned_staff_id)
			WHERE ticket_id = $4 AND status = $5
			RETURNING `+ticketColumns+`
		`, models.StatusInProgress, calledAt, nullIfEmpty(input.StaffID), next.TicketID, models.StatusWaiting)
		promoted, scanErr := scanTicket(row)
		if scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows) {
			err = scanErr
			return store.AdvanceResult{}, err
		}
		if scanErr == nil {
			result.Promoted = &promoted
			if err = insertOutboxEvent(ctx, tx, store.EventTicketCalled, promoted); err != nil {
				return store.AdvanceResult{}, err
			}
		}
	}
	err = nil

	completedID := ""
	promotedID := ""
	if result.Completed != nil {
		completedID = result.Completed.TicketID
	}
	if result.Promoted != nil {
		promotedID = result.Promoted.TicketID
	}
	if err = insertActionRequest(ctx, tx, "advance_queue", input.RequestID, completedID, promotedID); err != nil {
		return store.AdvanceResult{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return store.AdvanceResult{}, err
	}
	if result.Completed == nil && result.Promoted == nil {
		return store.AdvanceResult{}, store.ErrNoTicket
	}
	return result, nil
}

func (s *Store) ProgressStage(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ticket, err := lockTicket(ctx, tx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if ticket.Status != models.StatusWaiting && ticket.Status != models.StatusInProgress {
		err = store.ErrInvalidState
		return models.Ticket{}, err
	}

	occurredAt := occurred(input.OccurredAt)
	next, ok := lifecycle.NextStage(ticket.Stage)
	var row pgx.Row
	eventType := store.EventStageAdvanced
	if ok {
		row = tx.QueryRow(ctx, `
			UPDATE tickets SET stage = $1
			WHERE ticket_id = $2 AND stage = $3
			RETURNING `+ticketColumns+`
		`, next, ticket.TicketID, ticket.Stage)
	} else {
		// Last pre-terminal stage: the journey is over, complete the visit.
		eventType = store.EventTicketCompleted
		row = tx.QueryRow(ctx, `
			UPDATE tickets SET stage = $1, status = $2, completed_at = $3
			WHERE ticket_id = $4 AND stage = $5
			RETURNING `+ticketColumns+`
		`, models.StageCompleted, models.StatusCompleted, occurredAt, ticket.TicketID, ticket.Stage)
	}
	ticket, err = scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
		}
		return models.Ticket{}, err
	}

	if err = insertOutboxEvent(ctx, tx, eventType, ticket); err != nil {
		return models.Ticket{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) PromoteUpcoming(ctx context.Context, today string) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		UPDATE tickets SET status = $1
		WHERE status = $2 AND visit_date <= $3
		RETURNING `+ticketColumns+`
	`, models.StatusWaiting, models.StatusUpcoming, today)
	if err != nil {
		return 0, err
	}
	var promoted []models.Ticket
	for rows.Next() {
		ticket, scanErr := scanTicket(rows)
		if scanErr != nil {
			rows.Close()
			err = scanErr
			return 0, err
		}
		promoted = append(promoted, ticket)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for _, ticket := range promoted {
		if err = insertOutboxEvent(ctx, tx, store.EventTicketAccepted, ticket); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(promoted), nil
}

func (s *Store) MarkNotified(ctx context.Context, ticketID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tickets SET notified = TRUE
		WHERE ticket_id = $1 AND notified = FALSE
	`, ticketID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetTicket(ctx, ticketID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) InsertNotification(ctx context.Context, notification models.Notification) error {
	if notification.NotificationID == "" {
		notification.NotificationID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (notification_id, patient_id, ticket_id, title, message, type, created_at, dismissed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE)
	`, notification.NotificationID, notification.PatientID, notification.TicketID,
		notification.Title, notification.Message, notification.Type, notification.CreatedAt)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, patientID string) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT notification_id, patient_id, ticket_id, title, message, type, created_at, dismissed
		FROM notifications
		WHERE patient_id = $1 AND dismissed = FALSE
		ORDER BY created_at ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(&notification.NotificationID, &notification.PatientID, &notification.TicketID,
			&notification.Title, &notification.Message, &notification.Type,
			&notification.CreatedAt, &notification.Dismissed); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Store) DismissNotification(ctx context.Context, notificationID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET dismissed = TRUE WHERE notification_id = $1
	`, notificationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotificationNotFound
	}
	return nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT seq, event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		var payload []byte
		if err := rows.Scan(&event.Seq, &event.EventID, &event.Type, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, ticket models.Ticket) error {
	payload, err := json.Marshal(store.NewEventPayload(ticket))
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payload, time.Now().UTC())
	return err
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (store.AdvanceResult, bool, bool, error) {
	if requestID == "" {
		return store.AdvanceResult{}, false, false, nil
	}
	var completedID, promotedID sql.NullString
	err := tx.QueryRow(ctx, `
		SELECT completed_ticket_id, promoted_ticket_id
		FROM action_requests
		WHERE action = $1 AND request_id = $2
	`, action, requestID).Scan(&completedID, &promotedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.AdvanceResult{}, false, false, nil
		}
		return store.AdvanceResult{}, false, false, err
	}

	var result store.AdvanceResult
	if completedID.Valid && completedID.String != "" {
		row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, completedID.String)
		ticket, scanErr := scanTicket(row)
		if scanErr != nil {
			return store.AdvanceResult{}, false, false, scanErr
		}
		result.Completed = &ticket
	}
	if promotedID.Valid && promotedID.String != "" {
		row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, promotedID.String)
		ticket, scanErr := scanTicket(row)
		if scanErr != nil {
			return store.AdvanceResult{}, false, false, scanErr
		}
		result.Promoted = &ticket
	}
	empty := result.Completed == nil && result.Promoted == nil
	return result, true, empty, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, completedID, promotedID string) error {
	if requestID == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO action_requests (action, request_id, completed_ticket_id, promoted_ticket_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (action, request_id) DO NOTHING
	`, action, requestID, nullIfEmpty(completedID), nullIfEmpty(promotedID), time.Now().UTC())
	return err
}

func lockTicket(ctx context.Context, tx pgx.Tx, ticketID string) (models.Ticket, error) {
	row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1 FOR UPDATE`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var service, timeSlot, paymentStatus, requestID sql.NullString
	var assignedStaffID sql.NullString
	var acceptedAt, calledAt, completedAt sql.NullTime
	err := row.Scan(&ticket.TicketID, &ticket.TicketNumber, &ticket.PatientID, &ticket.PatientName,
		&ticket.PatientPhone, &ticket.HospitalID, &ticket.Department, &service, &ticket.Date,
		&timeSlot, &ticket.Emergency, &ticket.Status, &ticket.Stage, &assignedStaffID,
		&paymentStatus, &ticket.Notified, &ticket.CreatedAt, &requestID,
		&acceptedAt, &calledAt, &completedAt)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket.Service = service.String
	ticket.TimeSlot = timeSlot.String
	ticket.PaymentStatus = paymentStatus.String
	ticket.RequestID = requestID.String
	if assignedStaffID.Valid {
		staffID := assignedStaffID.String
		ticket.AssignedStaffID = &staffID
	}
	ticket.AcceptedAt = nullTimePtr(acceptedAt)
	ticket.CalledAt = nullTimePtr(calledAt)
	ticket.CompletedAt = nullTimePtr(completedAt)
	return ticket, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func occurred(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
