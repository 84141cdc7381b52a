package classifier

import (
	"context"
	"strings"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// Fallback is a purely local keyword classifier. It is deterministic,
// never fails, and is used whenever the remote model is unavailable or
// too slow.
type Fallback struct{}

// NewFallback returns the keyword classifier.
func NewFallback() *Fallback {
	return &Fallback{}
}

// Classify scans the message for known keywords. First match wins, so
// "urgent" outranks "bug" outranks "billing".
func (f *Fallback) Classify(_ context.Context, text string) (Classification, error) {
	lower := strings.ToLower(text)

	result := Classification{
		Category:  domain.CategoryGeneral,
		Sentiment: domain.SentimentNeutral,
		Urgency:   domain.UrgencyLow,
	}

	switch {
	case containsAny(lower, "urgent", "emergency"):
		result.Urgency = domain.UrgencyUrgent
		result.Category = domain.CategoryUrgent
	case containsAny(lower, "bug", "error", "crash", "broken"):
		result.Urgency = domain.UrgencyHigh
		result.Category = domain.CategoryTechnical
	case containsAny(lower, "billing", "payment", "invoice", "refund"):
		result.Urgency = domain.UrgencyMedium
		result.Category = domain.CategoryBilling
	case containsAny(lower, "feature", "request", "suggestion"):
		result.Category = domain.CategoryFeature
	}

	switch {
	case containsAny(lower, "thank", "appreciate", "great"):
		result.Sentiment = domain.SentimentPositive
	case containsAny(lower, "disappointed", "unhappy", "not working", "terrible", "awful"):
		result.Sentiment = domain.SentimentNegative
	}

	return result, nil
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
