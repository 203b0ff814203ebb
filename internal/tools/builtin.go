package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marcus-sw/call-agent/internal/realtime"
	"github.com/marcus-sw/call-agent/internal/store"
)

// RegisterBuiltins adds the two stock backend actions: appointment
// scheduling and support ticket creation. Both write through the given
// store.
func RegisterBuiltins(r *Registry, st store.Store) {
	r.Register(Tool{
		Name:        "schedule_appointment",
		Description: "Schedules an appointment for the customer",
		Parameters: map[string]realtime.ToolProperty{
			"customer_name": {Type: "string"},
			"date":          {Type: "string", Format: "date"},
			"time":          {Type: "string", Format: "time"},
			"purpose":       {Type: "string"},
		},
		Required: []string{"customer_name", "date", "time", "purpose"},
		Handler:  scheduleAppointment(st),
	})

	r.Register(Tool{
		Name:        "create_support_ticket",
		Description: "Creates a support ticket",
		Parameters: map[string]realtime.ToolProperty{
			"customer_name": {Type: "string"},
			"issue":         {Type: "string"},
			"priority":      {Type: "string", Enum: []string{"low", "medium", "high"}},
		},
		Required: []string{"customer_name", "issue"},
		Handler:  createSupportTicket(st),
	})
}

func scheduleAppointment(st store.Store) Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a := store.Appointment{
			ID:           uuid.NewString(),
			CustomerName: str(args, "customer_name"),
			Date:         str(args, "date"),
			Time:         str(args, "time"),
			Purpose:      str(args, "purpose"),
		}
		if err := st.CreateAppointment(ctx, a); err != nil {
			return nil, fmt.Errorf("schedule appointment: %w", err)
		}
		slog.Info("appointment scheduled", "appointment_id", a.ID, "customer", a.CustomerName, "date", a.Date, "time", a.Time)
		return map[string]any{
			"success":        true,
			"appointment_id": a.ID,
			"message":        fmt.Sprintf("Appointment for %s on %s at %s has been scheduled.", a.CustomerName, a.Date, a.Time),
		}, nil
	}
}

func createSupportTicket(st store.Store) Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		priority := str(args, "priority")
		if priority == "" {
			priority = "medium"
		}
		t := store.Ticket{
			ID:           fmt.Sprintf("TICKET-%d", time.Now().UnixMilli()),
			CustomerName: str(args, "customer_name"),
			Issue:        str(args, "issue"),
			Priority:     priority,
		}
		if err := st.CreateTicket(ctx, t); err != nil {
			return nil, fmt.Errorf("create support ticket: %w", err)
		}
		slog.Info("support ticket created", "ticket_id", t.ID, "customer", t.CustomerName, "priority", t.Priority)
		return map[string]any{
			"success":   true,
			"ticket_id": t.ID,
			"message":   fmt.Sprintf("Support ticket for %s has been created.", t.CustomerName),
		}, nil
	}
}

func str(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
