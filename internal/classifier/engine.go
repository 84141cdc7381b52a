package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/observability"
)

// Engine is the classifier handed to the ticket service. It bounds
// each remote call with a timeout and falls back to the local keyword
// classifier, so Classify always produces an answer. Classification
// failure is absorbed here and never reaches a caller.
type Engine struct {
	remote   Classifier
	fallback *Fallback
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewEngine wires the remote classifier (may be nil when no model
// endpoint is configured) with the fallback.
func NewEngine(remote Classifier, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		remote:   remote,
		fallback: NewFallback(),
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Classify analyzes text, never returning an error. A slow or failing
// remote model degrades to the keyword fallback within the configured
// timeout, keeping ticket mutation latency bounded.
func (e *Engine) Classify(ctx context.Context, text string) Classification {
	if e.remote != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		result, err := e.remote.Classify(callCtx, text)
		if err == nil {
			e.metrics.RecordClassification(false)
			return result
		}
		e.logger.Warn("remote classification failed, using fallback", zap.Error(err))
	}

	e.metrics.RecordClassification(true)
	result, _ := e.fallback.Classify(ctx, text)
	return result
}
