package fusion

import (
	"fmt"
	"strings"

	"calltriage/internal/domain"
)

// Fixed scores for verdicts the rule matcher decides alone.
const (
	scoreLevel1 = 100
	scoreLevel2 = 85
	scoreLevel4 = 30
	scoreLevel5 = 10
)

const nonsenseMinimalResponse = "N/A"

// Fuse combines a rule verdict and a contextual verdict into the final
// verdict. Rule levels 1 and 2 are never downgraded, levels 4 and 5 can only
// be escalated, and level 3 takes the more urgent of the two unless the
// contextual rationale flags the input as nonsense.
func Fuse(rule domain.RuleVerdict, contextual domain.ContextVerdict, nonsenseMarkers []string) domain.FinalVerdict {
	contextual = sanitize(contextual)
	ruleUrgency := rule.Level.Urgency()

	switch rule.Level {
	case domain.ESILevel1, domain.ESILevel2:
		return ruleOnly(rule)

	case domain.ESILevel4, domain.ESILevel5:
		if contextual.Level.Outranks(ruleUrgency) {
			return domain.FinalVerdict{
				Level:          contextual.Level,
				Score:          contextual.Score,
				Rationale:      fmt.Sprintf("%s (contextual escalation from ESI Level %d; rule: %s)", contextual.Rationale, rule.Level, rule.Rationale),
				RuleLevel:      rule.Level,
				Method:         domain.FusionSafetyEscalation,
				TimeToResponse: contextual.Level.ESI().TimeToResponse(),
			}
		}
		return ruleOnly(rule)
	}

	// Level 3, including the baseline fallthrough.
	if (contextual.Level == domain.UrgencyLow || contextual.Level == domain.UrgencyMinimal) &&
		mentionsAny(contextual.Rationale, nonsenseMarkers) {
		response := domain.ESILevel4.TimeToResponse()
		if contextual.Level == domain.UrgencyMinimal {
			response = nonsenseMinimalResponse
		}
		return domain.FinalVerdict{
			Level:          contextual.Level,
			Score:          contextual.Score,
			Rationale:      fmt.Sprintf("%s (nonsense input overrides ESI Level %d; rule: %s)", contextual.Rationale, rule.Level, rule.Rationale),
			RuleLevel:      rule.Level,
			Method:         domain.FusionNonsenseFilter,
			TimeToResponse: response,
		}
	}

	if contextual.Level.Outranks(ruleUrgency) {
		return domain.FinalVerdict{
			Level:          contextual.Level,
			Score:          contextual.Score,
			Rationale:      fmt.Sprintf("%s (contextually refined from ESI Level %d; rule: %s)", contextual.Rationale, rule.Level, rule.Rationale),
			RuleLevel:      rule.Level,
			Method:         domain.FusionAIRefined,
			TimeToResponse: contextual.Level.ESI().TimeToResponse(),
		}
	}
	return domain.FinalVerdict{
		Level:          ruleUrgency,
		Score:          contextual.Score,
		Rationale:      fmt.Sprintf("%s + contextual confirmation (%s: %s)", rule.Rationale, contextual.Level, contextual.Rationale),
		RuleLevel:      rule.Level,
		Method:         domain.FusionAIConfirmed,
		TimeToResponse: rule.Level.TimeToResponse(),
	}
}

func ruleOnly(rule domain.RuleVerdict) domain.FinalVerdict {
	var score float64
	switch rule.Level {
	case domain.ESILevel1:
		score = scoreLevel1
	case domain.ESILevel2:
		score = scoreLevel2
	case domain.ESILevel4:
		score = scoreLevel4
	default:
		score = scoreLevel5
	}
	return domain.FinalVerdict{
		Level:          rule.Level.Urgency(),
		Score:          score,
		Rationale:      rule.Rationale + " (evidence-based ESI v5)",
		RuleLevel:      rule.Level,
		Method:         domain.FusionRuleOnly,
		TimeToResponse: rule.Level.TimeToResponse(),
	}
}

// sanitize forces the contextual verdict onto the canonical scale.
func sanitize(v domain.ContextVerdict) domain.ContextVerdict {
	if !v.Level.Valid() {
		v.Level = domain.UrgencyMedium
	}
	v.Score = domain.ClampScore(v.Score)
	return v
}

func mentionsAny(text string, markers []string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range markers {
		if marker != "" && strings.Contains(lowered, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
