package models

import "time"

type Ticket struct {
	TicketID        string     `json:"ticket_id"`
	TicketNumber    string     `json:"ticket_number"`
	PatientID       string     `json:"patient_id"`
	PatientName     string     `json:"patient_name,omitempty"`
	PatientPhone    string     `json:"patient_phone,omitempty"`
	HospitalID      string     `json:"hospital_id"`
	Department      string     `json:"department"`
	Service         string     `json:"service,omitempty"`
	Date            string     `json:"date"`
	TimeSlot        string     `json:"time_slot,omitempty"`
	Emergency       bool       `json:"emergency"`
	Status          string     `json:"status"`
	Stage           string     `json:"stage"`
	AssignedStaffID *string    `json:"assigned_staff_id,omitempty"`
	PaymentStatus   string     `json:"payment_status,omitempty"`
	Notified        bool       `json:"notified"`
	CreatedAt       time.Time  `json:"created_at"`
	RequestID       string     `json:"request_id,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	CalledAt        *time.Time `json:"called_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusWaiting    = "waiting"
	StatusUpcoming   = "upcoming"
	StatusInProgress = "in_progress"
	StatusDelayed    = "delayed"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

const (
	StageCheckIn   = "check_in"
	StageTriage    = "triage"
	StageBilling   = "billing"
	StageDoctor    = "doctor"
	StagePharmacy  = "pharmacy"
	StageCompleted = "completed"
)

// Walk-in sentinels accepted in TimeSlot instead of a clock time.
const (
	SlotASAP = "ASAP"
	SlotNow  = "Now"
)

// DateLayout is the calendar-day format used for queue partitioning.
const DateLayout = "2006-01-02"

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusRejected
}
