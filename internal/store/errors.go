package store

import "errors"

var (
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidState         = errors.New("invalid ticket state")
	ErrNoTicket             = errors.New("no ticket available")
	ErrDuplicateRequest     = errors.New("duplicate request")
)
