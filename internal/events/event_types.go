package events

import (
	"time"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTicketRated         EventType = "ticket_rated"
)

// Actor records who performed the action behind an event.
type Actor struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject    string                `json:"subject"`
	Category   domain.TicketCategory `json:"category"`
	Urgency    domain.Urgency        `json:"urgency"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
}

// TicketEscalatedPayload payload. Only the fields that actually
// changed are set.
type TicketEscalatedPayload struct {
	NewSentiment *domain.Sentiment `json:"new_sentiment,omitempty"`
	NewUrgency   *domain.Urgency   `json:"new_urgency,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Automatic bool   `json:"automatic"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	Sender      domain.MessageSender `json:"sender"`
	BodyPreview string               `json:"body_preview"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	Rating int `json:"rating"`
}
