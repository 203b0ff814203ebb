package store

import (
	"context"
	"sync"
)

// Memory is an in-process store used when no database is configured.
type Memory struct {
	mu           sync.Mutex
	appointments map[string]Appointment
	tickets      map[string]Ticket
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		appointments: make(map[string]Appointment),
		tickets:      make(map[string]Ticket),
	}
}

func (m *Memory) CreateAppointment(_ context.Context, a Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[a.ID] = a
	return nil
}

func (m *Memory) CreateTicket(_ context.Context, t Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
	return nil
}

func (m *Memory) Close() error { return nil }

// Appointment returns a stored appointment by id.
func (m *Memory) Appointment(id string) (Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	return a, ok
}

// Ticket returns a stored ticket by id.
func (m *Memory) Ticket(id string) (Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	return t, ok
}
