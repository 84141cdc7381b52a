package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. The set is
// flat: any status may transition to any other, including reopening a
// closed ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ParseTicketStatus validates a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch TicketStatus(raw) {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return TicketStatus(raw), true
	}
	return "", false
}

// TicketCategory tags the kind of request. The set is open ended;
// these are the values the classifiers produce today.
type TicketCategory string

const (
	CategoryGeneral   TicketCategory = "general"
	CategoryTechnical TicketCategory = "technical"
	CategoryBilling   TicketCategory = "billing"
	CategoryFeature   TicketCategory = "feature"
	CategoryUrgent    TicketCategory = "urgent"
)

// Sentiment is the coarse emotional tone of the customer's messages.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Urgency is the ordinal severity of a ticket. Severity ascends
// low < medium < high < urgent; automatic reclassification only ever
// moves a ticket toward more severe.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

var urgencySeverity = map[Urgency]int{
	UrgencyLow:    0,
	UrgencyMedium: 1,
	UrgencyHigh:   2,
	UrgencyUrgent: 3,
}

// Severity returns the position of u in the fixed total order.
// Unknown values rank below low so they can never escalate a ticket.
func (u Urgency) Severity() int {
	if s, ok := urgencySeverity[u]; ok {
		return s
	}
	return -1
}

// MoreSevereThan reports whether u is strictly more severe than other.
func (u Urgency) MoreSevereThan(other Urgency) bool {
	return u.Severity() > other.Severity()
}

// MessageSender identifies which side of the conversation wrote a
// ticket message.
type MessageSender string

const (
	SenderCustomer MessageSender = "customer"
	SenderSupport  MessageSender = "support"
)

// Message is one entry in a ticket's append-only conversation thread.
type Message struct {
	Sender    MessageSender `json:"sender"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
}

// HistoryEntry is one entry in a ticket's append-only audit trail.
// Entries are never rewritten or removed once appended.
type HistoryEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticket is the aggregate for one customer support case.
type Ticket struct {
	ID           string
	ReferenceKey string
	CustomerID   string
	CustomerName string
	Subject      string
	Category     TicketCategory
	Sentiment    Sentiment
	Urgency      Urgency
	Status       TicketStatus
	AssignedTo   *string
	Rating       *int
	Messages     []Message
	History      []HistoryEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
