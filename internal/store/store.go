package store

import (
	"context"
	"time"
)

// Appointment is one scheduled appointment created by the agent mid-call.
type Appointment struct {
	ID           string
	CustomerName string
	Date         string
	Time         string
	Purpose      string
	CreatedAt    time.Time
}

// Ticket is one support ticket created by the agent mid-call.
type Ticket struct {
	ID           string
	CustomerName string
	Issue        string
	Priority     string
	CreatedAt    time.Time
}

// Store persists backend actions resolved by tool handlers.
type Store interface {
	CreateAppointment(ctx context.Context, a Appointment) error
	CreateTicket(ctx context.Context, t Ticket) error
	Close() error
}
