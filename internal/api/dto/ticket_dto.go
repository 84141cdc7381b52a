package dto

import (
	"time"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Text string `json:"text"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AssignRequest payload.
type AssignRequest struct {
	AgentID string `json:"agent_id"`
}

// SubmitRatingRequest payload.
type SubmitRatingRequest struct {
	Rating int `json:"rating"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	Sender    domain.MessageSender `json:"sender"`
	Text      string               `json:"text"`
	Timestamp time.Time            `json:"timestamp"`
}

// HistoryEntryResponse represents one audit trail entry.
type HistoryEntryResponse struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID           string                 `json:"id"`
	ReferenceKey string                 `json:"reference_key"`
	CustomerName string                 `json:"customer_name"`
	Subject      string                 `json:"subject"`
	Category     domain.TicketCategory  `json:"category"`
	Sentiment    domain.Sentiment       `json:"sentiment"`
	Urgency      domain.Urgency         `json:"urgency"`
	Status       domain.TicketStatus    `json:"status"`
	AssignedTo   *string                `json:"assigned_to"`
	Rating       *int                   `json:"rating"`
	Messages     []MessageResponse      `json:"messages"`
	History      []HistoryEntryResponse `json:"history"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// TicketSummary is the listing shape without thread or trail.
type TicketSummary struct {
	ID           string                `json:"id"`
	ReferenceKey string                `json:"reference_key"`
	CustomerName string                `json:"customer_name"`
	Subject      string                `json:"subject"`
	Category     domain.TicketCategory `json:"category"`
	Sentiment    domain.Sentiment      `json:"sentiment"`
	Urgency      domain.Urgency        `json:"urgency"`
	Status       domain.TicketStatus   `json:"status"`
	AssignedTo   *string               `json:"assigned_to"`
	Rating       *int                  `json:"rating"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}
