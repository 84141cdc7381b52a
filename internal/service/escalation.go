package service

import (
	"fmt"

	"github.com/spec-kit/ticket-workflow/internal/classifier"
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// EscalationResult names the ticket fields a new customer message
// changes. Nil fields stay untouched.
type EscalationResult struct {
	Sentiment *domain.Sentiment
	Urgency   *domain.Urgency
}

// Changed reports whether the message escalated anything.
func (r EscalationResult) Changed() bool {
	return r.Sentiment != nil || r.Urgency != nil
}

// EvaluateEscalation applies the escalation rules to a fresh
// classification of a customer message against the ticket's current
// state:
//
//   - sentiment updates when the ticket is neutral and the message is
//     not, or whenever the message is negative; a negative ticket never
//     recovers to positive or neutral through this path
//   - urgency updates only when the new value is strictly more severe
//     under the fixed total order
//
// Support messages must not be passed here; they never reclassify.
func EvaluateEscalation(ticket *domain.Ticket, cls classifier.Classification) EscalationResult {
	var result EscalationResult

	if cls.Sentiment != ticket.Sentiment {
		if (ticket.Sentiment == domain.SentimentNeutral && cls.Sentiment != domain.SentimentNeutral) ||
			cls.Sentiment == domain.SentimentNegative {
			sentiment := cls.Sentiment
			result.Sentiment = &sentiment
		}
	}

	if cls.Urgency.MoreSevereThan(ticket.Urgency) {
		urgency := cls.Urgency
		result.Urgency = &urgency
	}

	return result
}

// escalationAction extends the message-received audit action with the
// fields the escalation changed, matching the entry format the rest of
// the trail uses.
func escalationAction(base string, result EscalationResult) string {
	action := base
	if result.Sentiment != nil {
		action += fmt.Sprintf(" (Sentiment updated to %s)", *result.Sentiment)
	}
	if result.Urgency != nil {
		action += fmt.Sprintf(" (Urgency escalated to %s)", *result.Urgency)
	}
	return action
}
