package models

import "time"

type Notification struct {
	NotificationID string    `json:"notification_id"`
	PatientID      string    `json:"patient_id"`
	TicketID       string    `json:"ticket_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
	Dismissed      bool      `json:"dismissed"`
}

const NotificationTypeReminder = "reminder"
