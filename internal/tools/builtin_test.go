package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-sw/call-agent/internal/store"
)

func TestScheduleAppointment(t *testing.T) {
	st := store.NewMemory()
	r := NewRegistry(0)
	RegisterBuiltins(r, st)

	result := r.Dispatch(context.Background(), "schedule_appointment",
		`{"customer_name":"Lena","date":"2025-01-10","time":"10:00","purpose":"demo"}`)

	require.Equal(t, true, result["success"])
	id, _ := result["appointment_id"].(string)
	require.NotEmpty(t, id)
	assert.Contains(t, result["message"], "Lena")
	assert.Contains(t, result["message"], "2025-01-10")

	a, ok := st.Appointment(id)
	require.True(t, ok)
	assert.Equal(t, "Lena", a.CustomerName)
	assert.Equal(t, "demo", a.Purpose)
}

func TestScheduleAppointmentMissingArgs(t *testing.T) {
	st := store.NewMemory()
	r := NewRegistry(0)
	RegisterBuiltins(r, st)

	result := r.Dispatch(context.Background(), "schedule_appointment",
		`{"customer_name":"Lena"}`)

	assert.Equal(t, "missing required argument: date", result["error"])
	_, hasID := result["appointment_id"]
	assert.False(t, hasID)
}

func TestCreateSupportTicket(t *testing.T) {
	st := store.NewMemory()
	r := NewRegistry(0)
	RegisterBuiltins(r, st)

	result := r.Dispatch(context.Background(), "create_support_ticket",
		`{"customer_name":"Omar","issue":"no dial tone","priority":"high"}`)

	require.Equal(t, true, result["success"])
	id, _ := result["ticket_id"].(string)
	require.True(t, strings.HasPrefix(id, "TICKET-"))

	tk, ok := st.Ticket(id)
	require.True(t, ok)
	assert.Equal(t, "high", tk.Priority)
	assert.Equal(t, "no dial tone", tk.Issue)
}

func TestCreateSupportTicketDefaultPriority(t *testing.T) {
	st := store.NewMemory()
	r := NewRegistry(0)
	RegisterBuiltins(r, st)

	result := r.Dispatch(context.Background(), "create_support_ticket",
		`{"customer_name":"Omar","issue":"static on the line"}`)

	require.Equal(t, true, result["success"])
	tk, ok := st.Ticket(result["ticket_id"].(string))
	require.True(t, ok)
	assert.Equal(t, "medium", tk.Priority)
}

func TestBuiltinSchemas(t *testing.T) {
	r := NewRegistry(0)
	RegisterBuiltins(r, store.NewMemory())

	names := make(map[string]bool)
	for _, s := range r.Schemas() {
		names[s.Function.Name] = true
	}
	assert.True(t, names["schedule_appointment"])
	assert.True(t, names["create_support_ticket"])
}
