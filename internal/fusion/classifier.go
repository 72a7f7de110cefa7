package fusion

import (
	"context"
	"errors"
	"log/slog"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
	"calltriage/internal/rules"
)

const unavailableRationale = "contextual classifier unavailable - using ESI baseline"

// HybridClassifier runs the rule matcher and the contextual classifier and
// fuses their verdicts.
type HybridClassifier struct {
	matcher    *rules.Matcher
	contextual ports.ContextClassifier
	logger     *slog.Logger
}

// NewHybridClassifier wires a classifier. contextual may be nil, in which case
// every call uses the conservative default verdict.
func NewHybridClassifier(matcher *rules.Matcher, contextual ports.ContextClassifier, logger *slog.Logger) (*HybridClassifier, error) {
	if matcher == nil {
		return nil, errors.New("rule matcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridClassifier{
		matcher:    matcher,
		contextual: contextual,
		logger:     logger.With("component", "fusion"),
	}, nil
}

// Classify always returns a verdict; collaborator failures degrade to
// MEDIUM/50.
func (c *HybridClassifier) Classify(ctx context.Context, transcript string, note domain.ClinicalNote, locale domain.Locale) domain.FinalVerdict {
	rule := c.matcher.Match(transcript, locale)
	contextual := c.classifyContext(ctx, transcript, note, locale)
	verdict := Fuse(rule, contextual, c.matcher.Table().NonsenseMarkers)

	c.logger.Info("call classified",
		"locale", locale,
		"decision_point", rule.Point,
		"rule_level", rule.Level,
		"context_level", contextual.Level,
		"level", verdict.Level,
		"score", verdict.Score,
		"method", verdict.Method,
	)
	return verdict
}

func (c *HybridClassifier) classifyContext(ctx context.Context, transcript string, note domain.ClinicalNote, locale domain.Locale) domain.ContextVerdict {
	if c.contextual == nil {
		return fallbackVerdict()
	}
	verdict, err := c.contextual.ClassifyContext(ctx, transcript, note, locale)
	if err != nil {
		c.logger.Warn("contextual classifier failed", "error", err)
		return fallbackVerdict()
	}
	return sanitize(verdict)
}

func fallbackVerdict() domain.ContextVerdict {
	return domain.ContextVerdict{
		Level:     domain.UrgencyMedium,
		Score:     50,
		Rationale: unavailableRationale,
	}
}

var _ ports.UrgencyClassifier = (*HybridClassifier)(nil)
