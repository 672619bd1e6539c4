package nlu

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// classifyTimeout bounds how long a turn may wait on the model before the
// keyword fallback answers instead. Chat users notice anything slower.
const classifyTimeout = 12 * time.Second

// minConfidence below which a model reading is considered a guess and
// replaced by the keyword reading.
const minConfidence = 0.5

// Classifier wraps a Provider with a per-turn deadline and the keyword
// fallback. It never returns an error; something always classifies the
// message.
type Classifier struct {
	provider Provider
	fallback Keyword
	timeout  time.Duration
}

// NewClassifier builds a classifier. provider may be nil, in which case
// every message takes the keyword path (useful for development without an
// API key).
func NewClassifier(provider Provider) *Classifier {
	return &Classifier{provider: provider, timeout: classifyTimeout}
}

// Classify reads one message. Degraded paths are logged, not surfaced:
// the user gets a slightly dumber answer, not an error.
func (c *Classifier) Classify(ctx context.Context, req Request) *Result {
	if c.provider == nil {
		res, _ := c.fallback.Classify(ctx, req)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.provider.Classify(ctx, req)
	switch {
	case err == nil:
		if res.Confidence >= minConfidence {
			return res
		}
		slog.Debug("low-confidence model reading, using keywords",
			"confidence", res.Confidence, "sender", req.Sender)
	case errors.Is(err, ErrRateLimit):
		slog.Warn("nlu provider rate limited, using keywords", "sender", req.Sender)
	case errors.Is(err, ErrMalformedOutput):
		slog.Warn("nlu provider returned malformed output, using keywords", "sender", req.Sender)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		slog.Warn("nlu provider timed out, using keywords", "timeout", c.timeout, "sender", req.Sender)
	default:
		slog.Warn("nlu provider failed, using keywords", "err", err, "sender", req.Sender)
	}

	fallbackRes, _ := c.fallback.Classify(context.WithoutCancel(ctx), req)
	return fallbackRes
}
