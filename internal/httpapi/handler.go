package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
	"github.com/officialjesprec/Health-Queue-sub000/internal/readmodel"
	"github.com/officialjesprec/Health-Queue-sub000/internal/store"
)

type Handler struct {
	store            store.TicketStore
	perTicketMinutes int
}

type Options struct {
	PerTicketMinutes int
}

func NewHandler(ticketStore store.TicketStore, options Options) *Handler {
	perTicket := options.PerTicketMinutes
	if perTicket <= 0 {
		perTicket = 15
	}
	return &Handler{store: ticketStore, perTicketMinutes: perTicket}
}

type bookTicketRequest struct {
	RequestID    string `json:"request_id"`
	PatientID    string `json:"patient_id"`
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	HospitalID   string `json:"hospital_id"`
	Department   string `json:"department"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	TimeSlot     string `json:"time_slot"`
	Emergency    bool   `json:"emergency"`
}

type advanceQueueRequest struct {
	RequestID  string `json:"request_id"`
	HospitalID string `json:"hospital_id"`
	Department string `json:"department"`
	Date       string `json:"date"`
	StaffID    string `json:"staff_id"`
}

type ticketActionRequest struct {
	RequestID string `json:"request_id"`
	StaffID   string `json:"staff_id"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleBookTicket)
	mux.HandleFunc("/api/tickets/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/tickets/snapshot", h.handleSnapshot)
	mux.HandleFunc("/api/tickets/", h.handleTicketByID)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/my/tickets", h.handleMyTickets)
	mux.HandleFunc("/api/notifications", h.handleNotifications)
	mux.HandleFunc("/api/notifications/", h.handleNotificationActions)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleBookTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req bookTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)
	req.HospitalID = strings.TrimSpace(req.HospitalID)
	req.Department = strings.TrimSpace(req.Department)
	req.Service = strings.TrimSpace(req.Service)
	req.Date = strings.TrimSpace(req.Date)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)

	if req.RequestID == "" || req.HospitalID == "" || req.Department == "" || req.PatientName == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, hospital_id, department, and patient_name are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.PatientID != "" && !isValidUUID(req.PatientID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_id must be a UUID when provided")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format(models.DateLayout)
	}
	if !isValidDate(req.Date) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	if req.TimeSlot == "" {
		req.TimeSlot = models.SlotASAP
	}
	if req.PatientPhone != "" && !isValidPhone(req.PatientPhone) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_phone must be 8-16 digits")
		return
	}

	input := store.CreateTicketInput{
		RequestID:    req.RequestID,
		PatientID:    req.PatientID,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		HospitalID:   req.HospitalID,
		Department:   req.Department,
		Service:      req.Service,
		Date:         req.Date,
		TimeSlot:     req.TimeSlot,
		Emergency:    req.Emergency,
		CreatedAt:    time.Now().UTC(),
	}

	ticket, _, err := h.store.CreateTicket(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req advanceQueueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.HospitalID = strings.TrimSpace(req.HospitalID)
	req.Department = strings.TrimSpace(req.Department)
	req.Date = strings.TrimSpace(req.Date)
	req.StaffID = strings.TrimSpace(req.StaffID)

	if req.RequestID == "" || req.HospitalID == "" || req.Department == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, hospital_id, and department are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format(models.DateLayout)
	}
	if !isValidDate(req.Date) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	input := store.AdvanceQueueInput{
		RequestID:  req.RequestID,
		HospitalID: req.HospitalID,
		Department: req.Department,
		Date:       req.Date,
		StaffID:    req.StaffID,
		CalledAt:   time.Now().UTC(),
	}

	result, err := h.store.AdvanceQueue(r.Context(), input)
	if err != nil {
		if errors.Is(err, store.ErrNoTicket) {
			writeError(w, req.RequestID, http.StatusConflict, "queue_empty", "no tickets available")
			return
		}
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	hospitalID, department, date, ok := partitionParams(w, r)
	if !ok {
		return
	}

	tickets, err := h.store.QueryTickets(r.Context(), store.TicketQuery{
		HospitalID: hospitalID,
		Department: department,
		Date:       date,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	hospitalID, department, date, ok := partitionParams(w, r)
	if !ok {
		return
	}

	tickets, err := h.store.QueryTickets(r.Context(), store.TicketQuery{
		HospitalID: hospitalID,
		Department: department,
		Date:       date,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	views := make([]readmodel.TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		if models.IsTerminalStatus(ticket.Status) {
			continue
		}
		views = append(views, readmodel.Build(ticket, tickets, h.perTicketMinutes))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleMyTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" || !isValidUUID(patientID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "patient_id must be a UUID")
		return
	}

	own, err := h.store.QueryTickets(r.Context(), store.TicketQuery{PatientID: patientID})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	// Positions need each ticket's partition snapshot, not just the
	// patient's own tickets.
	seen := make(map[string][]models.Ticket)
	view := readmodel.PatientView{PatientID: patientID}
	for _, ticket := range own {
		key := ticket.HospitalID + "|" + ticket.Department + "|" + ticket.Date
		snapshot, ok := seen[key]
		if !ok {
			snapshot, err = h.store.QueryTickets(r.Context(), store.TicketQuery{
				HospitalID: ticket.HospitalID,
				Department: ticket.Department,
				Date:       ticket.Date,
			})
			if err != nil {
				status, code, msg := mapError(err)
				writeError(w, "", status, code, msg)
				return
			}
			seen[key] = snapshot
		}
		view.Tickets = append(view.Tickets, readmodel.Build(ticket, snapshot, h.perTicketMinutes))
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 2 && r.Method == http.MethodPost:
		h.handleTicketAction(w, r, parts[0], parts[1])
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket id must be a UUID")
		return
	}
	ticket, err := h.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket id must be a UUID")
		return
	}

	var req ticketActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.RequestID != "" && !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID when provided")
		return
	}

	input := store.TicketActionInput{
		RequestID:  req.RequestID,
		TicketID:   ticketID,
		StaffID:    req.StaffID,
		Today:      time.Now().UTC().Format(models.DateLayout),
		OccurredAt: time.Now().UTC(),
	}

	var ticket models.Ticket
	var err error
	switch action {
	case "accept":
		ticket, err = h.store.AcceptBooking(r.Context(), input)
	case "decline":
		ticket, err = h.store.DeclineBooking(r.Context(), input)
	case "progress":
		ticket, err = h.store.ProgressStage(r.Context(), input)
	case "complete":
		ticket, err = h.store.CompleteTicket(r.Context(), input)
	case "delay":
		ticket, err = h.store.DelayTicket(r.Context(), input)
	case "resume":
		ticket, err = h.store.ResumeTicket(r.Context(), input)
	default:
		writeError(w, req.RequestID, http.StatusNotFound, "unknown_action", "unknown ticket action")
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" || !isValidUUID(patientID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "patient_id must be a UUID")
		return
	}

	notifications, err := h.store.ListNotifications(r.Context(), patientID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *Handler) handleNotificationActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "dismiss" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	notificationID := parts[0]
	if !isValidUUID(notificationID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "notification id must be a UUID")
		return
	}

	if err := h.store.DismissNotification(r.Context(), notificationID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var afterSeq int64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be a non-negative event sequence")
			return
		}
		afterSeq = parsed
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be 1-500")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), afterSeq, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.OutboxEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func partitionParams(w http.ResponseWriter, r *http.Request) (string, string, string, bool) {
	hospitalID := strings.TrimSpace(r.URL.Query().Get("hospital_id"))
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if hospitalID == "" || department == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "hospital_id and department are required")
		return "", "", "", false
	}
	if date == "" {
		date = time.Now().UTC().Format(models.DateLayout)
	}
	if !isValidDate(date) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return "", "", "", false
	}
	return hospitalID, department, date, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidDate(value string) bool {
	_, err := time.Parse(models.DateLayout, value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrNotificationNotFound):
		return http.StatusNotFound, "notification_not_found", "notification not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket is not in a state that allows this action"
	case errors.Is(err, store.ErrNoTicket):
		return http.StatusConflict, "queue_empty", "no tickets available"
	default:
		return http.StatusInternalServerError, "internal_error", "internal error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error:     responseError{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
