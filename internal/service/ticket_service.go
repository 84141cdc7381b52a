package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/classifier"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util"
)

// MessageClassifier analyzes ticket text. It always answers; the
// classifier engine absorbs remote failures behind its fallback.
type MessageClassifier interface {
	Classify(ctx context.Context, text string) classifier.Classification
}

// TicketService owns the ticket lifecycle: creation with classification
// and assignment, message escalation, status transitions, reassignment
// and rating.
type TicketService struct {
	tickets    repository.TicketRepository
	directory  AgentDirectory
	selector   Selector
	classifier MessageClassifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Directory  AgentDirectory
	Selector   Selector
	Classifier MessageClassifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject string
	Message string
}

// TicketListFilter describes listing filters; scoping by role is
// applied on top of these.
type TicketListFilter struct {
	Statuses  []domain.TicketStatus
	Urgencies []domain.Urgency
	Limit     int
	Offset    int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		directory:  deps.Directory,
		selector:   deps.Selector,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket creates a ticket for a customer. The initial message is
// classified synchronously; category, sentiment and urgency are taken
// straight from the classification (no escalation logic at creation).
// An assignee is chosen from the active support agents when any exist;
// an empty directory is not an error.
func (s *TicketService) CreateTicket(ctx context.Context, requester domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	if requester.Role != domain.RoleCustomer {
		return nil, apperrors.NewForbidden("only customers can create tickets")
	}
	subject := strings.TrimSpace(input.Subject)
	message := strings.TrimSpace(input.Message)
	if subject == "" || message == "" {
		return nil, apperrors.NewValidationError("subject and message are required", nil)
	}

	cls := s.classifier.Classify(ctx, message)
	now := time.Now()

	ticket := &domain.Ticket{
		ReferenceKey: generateTicketKey(),
		CustomerID:   requester.ID,
		CustomerName: requester.Username,
		Subject:      subject,
		Category:     cls.Category,
		Sentiment:    cls.Sentiment,
		Urgency:      cls.Urgency,
		Status:       domain.TicketStatusOpen,
		Messages: []domain.Message{{
			Sender:    domain.SenderCustomer,
			Text:      message,
			Timestamp: now,
		}},
		History: []domain.HistoryEntry{{
			Action:    fmt.Sprintf("Ticket created with urgency %s and category %s", cls.Urgency, cls.Category),
			Timestamp: now,
		}},
	}

	var assignee *domain.User
	agents, err := s.directory.ListActive(ctx, domain.RoleSupport)
	if err != nil {
		// Assignment must not fail ticket creation; leave unassigned.
		s.logger.Warn("agent directory lookup failed", zap.Error(err))
		agents = nil
	}
	if len(agents) > 0 {
		selected := s.selector.Select(agents)
		assignee = &selected
		ticket.AssignedTo = &selected.ID
		ticket.History = append(ticket.History, domain.HistoryEntry{
			Action:    fmt.Sprintf("Assigned to support agent %s", selected.Username),
			Timestamp: now,
		})
	} else {
		ticket.History = append(ticket.History, domain.HistoryEntry{
			Action:    "No support agents available for assignment",
			Timestamp: now,
		})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, requester, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		Subject:    ticket.Subject,
		Category:   ticket.Category,
		Urgency:    ticket.Urgency,
		AssignedTo: ticket.AssignedTo,
	})
	if assignee != nil {
		s.publish(ctx, requester, events.EventTicketAssigned, ticket.ID, events.TicketAssignedPayload{
			AgentID:   assignee.ID,
			AgentName: assignee.Username,
			Automatic: true,
		})
	}
	return ticket, nil
}

// ListTickets returns tickets visible to the requester: admins see
// everything, support agents see tickets assigned to them or opened by
// them, customers see their own.
func (s *TicketService) ListTickets(ctx context.Context, requester domain.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:  filter.Statuses,
		Urgencies: filter.Urgencies,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}
	switch requester.Role {
	case domain.RoleAdmin:
	case domain.RoleSupport:
		id := requester.ID
		repoFilter.AccessibleTo = &id
	case domain.RoleCustomer:
		id := requester.ID
		repoFilter.CustomerID = &id
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches one ticket, enforcing the same visibility rules as
// ListTickets.
func (s *TicketService) GetTicket(ctx context.Context, requester domain.Identity, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(requester, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// AppendMessage appends a message to a ticket's thread. Customer
// messages are reclassified and may escalate sentiment and urgency;
// support messages are recorded without reclassification. The message,
// any field escalation and the audit entry land in one atomic update.
func (s *TicketService) AppendMessage(ctx context.Context, requester domain.Identity, ticketID, text string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("message text cannot be empty", nil)
	}

	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(requester, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	sender := domain.SenderSupport
	if requester.Role == domain.RoleCustomer {
		sender = domain.SenderCustomer
	}
	now := time.Now()

	mutation := repository.TicketMutation{
		AppendMessages: []domain.Message{{
			Sender:    sender,
			Text:      text,
			Timestamp: now,
		}},
	}

	action := fmt.Sprintf("%s sent a message", sender)
	var escalation EscalationResult
	if sender == domain.SenderCustomer {
		cls := s.classifier.Classify(ctx, text)
		escalation = EvaluateEscalation(ticket, cls)
		mutation.SetSentiment = escalation.Sentiment
		mutation.SetUrgency = escalation.Urgency
		action = escalationAction(action, escalation)
	}
	mutation.AppendHistory = []domain.HistoryEntry{{Action: action, Timestamp: now}}

	updated, err := s.tickets.Apply(ctx, ticket.ID, mutation)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, requester, events.EventTicketMessageAdded, updated.ID, events.TicketMessageAddedPayload{
		Sender:      sender,
		BodyPreview: preview(text, 120),
	})
	if escalation.Changed() {
		s.publish(ctx, requester, events.EventTicketEscalated, updated.ID, events.TicketEscalatedPayload{
			NewSentiment: escalation.Sentiment,
			NewUrgency:   escalation.Urgency,
		})
	}
	return updated, nil
}

// UpdateStatus moves a ticket to a new status. Any status may follow
// any other; reopening a closed ticket is allowed and never clears an
// existing rating. Customers may not change status. This path is also
// the only one that can lower urgency-adjacent state: it is an explicit
// manual action, distinct from the escalation path.
func (s *TicketService) UpdateStatus(ctx context.Context, requester domain.Identity, ticketID, rawStatus string) (*domain.Ticket, error) {
	if !requester.IsStaff() {
		return nil, apperrors.NewForbidden("customers cannot update ticket status")
	}
	status, ok := domain.ParseTicketStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("unrecognized status value", map[string]any{"status": rawStatus})
	}

	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	updated, err := s.tickets.Apply(ctx, ticket.ID, repository.TicketMutation{
		SetStatus: &status,
		AppendHistory: []domain.HistoryEntry{{
			Action:    fmt.Sprintf("Status updated to %s", status),
			Timestamp: time.Now(),
		}},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, requester, events.EventTicketStatusChanged, updated.ID, events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: status,
	})
	return updated, nil
}

// Reassign sets the assignee to a specific support agent. No
// randomness is involved; this is the explicit authorized path and the
// only way an assignee changes after automatic selection.
func (s *TicketService) Reassign(ctx context.Context, requester domain.Identity, ticketID, agentID string) (*domain.Ticket, error) {
	if !requester.IsStaff() {
		return nil, apperrors.NewForbidden("customers cannot assign tickets")
	}

	agent, err := s.findAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.fetch(ctx, ticketID); err != nil {
		return nil, err
	}

	updated, err := s.tickets.Apply(ctx, ticketID, repository.TicketMutation{
		SetAssignedTo: &agent.ID,
		AppendHistory: []domain.HistoryEntry{{
			Action:    fmt.Sprintf("Reassigned to support agent %s", agent.Username),
			Timestamp: time.Now(),
		}},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, requester, events.EventTicketAssigned, updated.ID, events.TicketAssignedPayload{
		AgentID:   agent.ID,
		AgentName: agent.Username,
		Automatic: false,
	})
	return updated, nil
}

// SubmitRating records the customer's rating on a closed ticket. Every
// precondition failure is a distinct error and causes no mutation; the
// conditional update in the repository guards against races on the
// rating being set twice.
func (s *TicketService) SubmitRating(ctx context.Context, requester domain.Identity, ticketID string, rating int) (*domain.Ticket, error) {
	if requester.Role != domain.RoleCustomer {
		return nil, apperrors.NewForbidden("only customers can rate tickets")
	}
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}

	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.CustomerID != requester.ID {
		return nil, apperrors.NewForbidden("you can only rate your own tickets")
	}
	if ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewValidationError("ticket must be closed before rating", map[string]any{"status": ticket.Status})
	}
	if ticket.Rating != nil {
		return nil, apperrors.NewValidationError("ticket already rated", map[string]any{"rating": *ticket.Rating})
	}

	updated, err := s.tickets.ApplyRating(ctx, ticket.ID, rating, domain.HistoryEntry{
		Action:    fmt.Sprintf("Customer submitted rating: %d/5", rating),
		Timestamp: time.Now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race: the ticket was rated or reopened between the
			// read and the conditional update.
			return nil, apperrors.NewConflict("ticket can no longer be rated", nil)
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, requester, events.EventTicketRated, updated.ID, events.TicketRatedPayload{Rating: rating})
	return updated, nil
}

func (s *TicketService) fetch(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) findAgent(ctx context.Context, agentID string) (*domain.User, error) {
	agents, err := s.directory.ListActive(ctx, domain.RoleSupport)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range agents {
		if agents[i].ID == agentID {
			return &agents[i], nil
		}
	}
	return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
}

func canView(requester domain.Identity, ticket *domain.Ticket) bool {
	switch requester.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSupport:
		if ticket.AssignedTo != nil && *ticket.AssignedTo == requester.ID {
			return true
		}
		return ticket.CustomerID == requester.ID
	case domain.RoleCustomer:
		return ticket.CustomerID == requester.ID
	}
	return false
}

func (s *TicketService) publish(ctx context.Context, actor domain.Identity, eventType events.EventType, ticketID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		TicketID: ticketID,
		Actor: events.Actor{
			ID:       actor.ID,
			Username: actor.Username,
			Role:     actor.Role,
		},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
