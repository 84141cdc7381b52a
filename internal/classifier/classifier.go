// Package classifier maps free-form ticket text to a category,
// sentiment and urgency. The production path calls an external model
// service; a deterministic keyword fallback guarantees an answer even
// when that call fails or times out.
package classifier

import (
	"context"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// Classification is the result of analyzing one message.
type Classification struct {
	Category  domain.TicketCategory `json:"category"`
	Sentiment domain.Sentiment      `json:"sentiment"`
	Urgency   domain.Urgency        `json:"urgency"`
}

// Classifier analyzes a single message. Implementations must be safe
// for concurrent use; calls for different tickets share no state.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}
