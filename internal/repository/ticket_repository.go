package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// TicketMutation names exactly the field sets and array appends one
// operation performs. Apply turns it into a single UPDATE so that
// concurrent mutations of the same ticket never lose appends the way a
// fetch-modify-save round trip would. Nil set fields are left alone.
type TicketMutation struct {
	SetStatus      *domain.TicketStatus
	SetSentiment   *domain.Sentiment
	SetUrgency     *domain.Urgency
	SetAssignedTo  *string
	AppendMessages []domain.Message
	AppendHistory  []domain.HistoryEntry
}

// TicketFilter scopes ticket listings.
type TicketFilter struct {
	CustomerID   *string
	AccessibleTo *string // matches tickets assigned to or owned by this user id
	Statuses     []domain.TicketStatus
	Urgencies    []domain.Urgency
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Apply executes the mutation atomically and returns the updated ticket.
	Apply(ctx context.Context, id string, m TicketMutation) (*domain.Ticket, error)
	// ApplyRating sets the rating only while the ticket is closed and
	// unrated; pgx.ErrNoRows signals the precondition no longer holds.
	ApplyRating(ctx context.Context, id string, rating int, entry domain.HistoryEntry) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, reference_key, customer_id, customer_name, subject, category,
               sentiment, urgency, status, assigned_to, rating, messages, history,
               created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	messages, err := json.Marshal(ticket.Messages)
	if err != nil {
		return err
	}
	history, err := json.Marshal(ticket.History)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO tickets (reference_key, customer_id, customer_name, subject, category,
            sentiment, urgency, status, assigned_to, messages, history)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11::jsonb)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ReferenceKey,
		ticket.CustomerID,
		ticket.CustomerName,
		ticket.Subject,
		ticket.Category,
		ticket.Sentiment,
		ticket.Urgency,
		ticket.Status,
		ticket.AssignedTo,
		string(messages),
		string(history),
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) Apply(ctx context.Context, id string, m TicketMutation) (*domain.Ticket, error) {
	messages, err := json.Marshal(messagesOrEmpty(m.AppendMessages))
	if err != nil {
		return nil, err
	}
	history, err := json.Marshal(historyOrEmpty(m.AppendHistory))
	if err != nil {
		return nil, err
	}

	// Sentiment and urgency are guarded in the statement itself, not
	// just in the service: the service evaluates escalation against a
	// row read before the UPDATE, so a concurrent message may have
	// already escalated the ticket. The guards make a stale, less
	// severe write a no-op — urgency only moves up the fixed order and
	// sentiment never leaves negative.
	query := `
        UPDATE tickets SET
            status = COALESCE($2, status),
            sentiment = CASE
                WHEN $3::text IS NOT NULL AND sentiment <> 'negative' THEN $3::text
                ELSE sentiment END,
            urgency = CASE
                WHEN $4::text IS NOT NULL
                     AND array_position('{low,medium,high,urgent}'::text[], $4::text)
                       > array_position('{low,medium,high,urgent}'::text[], urgency)
                THEN $4::text
                ELSE urgency END,
            assigned_to = COALESCE($5, assigned_to),
            messages = messages || $6::jsonb,
            history = history || $7::jsonb,
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query,
		id,
		statusPtr(m.SetStatus),
		sentimentPtr(m.SetSentiment),
		urgencyPtr(m.SetUrgency),
		m.SetAssignedTo,
		string(messages),
		string(history),
	))
}

func (r *ticketRepository) ApplyRating(ctx context.Context, id string, rating int, entry domain.HistoryEntry) (*domain.Ticket, error) {
	history, err := json.Marshal([]domain.HistoryEntry{entry})
	if err != nil {
		return nil, err
	}

	query := `
        UPDATE tickets SET
            rating = $2,
            history = history || $3::jsonb,
            updated_at = NOW()
        WHERE id = $1 AND rating IS NULL AND status = $4
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query, id, rating, string(history), domain.TicketStatusClosed))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AccessibleTo != nil {
		args = append(args, *filter.AccessibleTo)
		clauses = append(clauses, fmt.Sprintf("(assigned_to=$%d OR customer_id=$%d)", len(args), len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Urgencies) > 0 {
		placeholders := make([]string, len(filter.Urgencies))
		for i, urgency := range filter.Urgencies {
			args = append(args, urgency)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("urgency IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		messages []byte
		history  []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ReferenceKey,
		&ticket.CustomerID,
		&ticket.CustomerName,
		&ticket.Subject,
		&ticket.Category,
		&ticket.Sentiment,
		&ticket.Urgency,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.Rating,
		&messages,
		&history,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &ticket.Messages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &ticket.History); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func messagesOrEmpty(msgs []domain.Message) []domain.Message {
	if msgs == nil {
		return []domain.Message{}
	}
	return msgs
}

func historyOrEmpty(entries []domain.HistoryEntry) []domain.HistoryEntry {
	if entries == nil {
		return []domain.HistoryEntry{}
	}
	return entries
}

func statusPtr(s *domain.TicketStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func sentimentPtr(s *domain.Sentiment) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func urgencyPtr(u *domain.Urgency) *string {
	if u == nil {
		return nil
	}
	v := string(*u)
	return &v
}
