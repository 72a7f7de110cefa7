package openai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"calltriage/internal/domain"
)

const classifyMaxTokens = 250

// ClassifyContext asks the model for an ESI-informed urgency judgement.
func (c *Client) ClassifyContext(ctx context.Context, transcript string, note domain.ClinicalNote, locale domain.Locale) (domain.ContextVerdict, error) {
	language := locale.DisplayName()
	system := "You are an emergency medicine physician trained in ESI triage."
	prompt := fmt.Sprintf(`You are an emergency medicine physician using the Emergency Severity Index (ESI) Version 5.
Provide REASONING in %[1]s.

ESI LEVELS:
- ESI 1/CRITICAL: Immediate life threat (cardiac arrest, not breathing, unresponsive)
- ESI 2/HIGH: High-risk or likely to deteriorate (chest pain, stroke, severe trauma)
- ESI 3/MEDIUM: Multiple resources needed but stable
- ESI 4/LOW: One resource needed (simple laceration, minor sprain, simple UTI)
- ESI 5/MINIMAL: No resources needed (prescription refill, advice only)

RULES:
1. Context matters: "no chest pain" is LOW, not HIGH.
2. Negation: "denies chest pain" is LOW.
3. Nonsense or testing input ("blah blah", "testing 123") is LOW and the reasoning must say nonsense or testing.
4. Escalate only for clear medical threats.

TRANSCRIPT:
%[2]s

SOAP NOTES:
Subjective: %[3]s
Objective: %[4]s
Assessment: %[5]s
Plan: %[6]s

Respond in EXACT format:
LEVEL: [CRITICAL/HIGH/MEDIUM/LOW/MINIMAL]
SCORE: [0-100]
REASONING: [brief clinical rationale in %[1]s]`,
		language, transcript,
		orNA(note.Subjective), orNA(note.Objective), orNA(note.Assessment), orNA(note.Plan))

	content, err := c.complete(ctx, system, prompt, classifyMaxTokens)
	if err != nil {
		return domain.ContextVerdict{}, fmt.Errorf("contextual classification: %w", err)
	}
	return parseVerdict(content), nil
}

// parseVerdict reads LEVEL/SCORE/REASONING lines. Unknown levels become
// MEDIUM, unparsable scores 50, and scores are clamped to 0..100.
func parseVerdict(content string) domain.ContextVerdict {
	verdict := domain.ContextVerdict{Level: domain.UrgencyMedium, Score: 50}

	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.Trim(key, "*# ")) {
		case "LEVEL":
			if level, err := domain.ParseUrgencyLevel(value); err == nil {
				verdict.Level = level
			}
		case "SCORE":
			if score, err := strconv.ParseFloat(strings.Trim(value, "[]* "), 64); err == nil {
				verdict.Score = domain.ClampScore(score)
			}
		case "REASONING":
			verdict.Rationale = value
		}
	}
	return verdict
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
