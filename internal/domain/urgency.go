package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnknownUrgency = errors.New("unknown urgency level")

// UrgencyLevel is one of the five canonical urgency names.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "CRITICAL"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyLow      UrgencyLevel = "LOW"
	UrgencyMinimal  UrgencyLevel = "MINIMAL"
)

// Rank orders levels: CRITICAL(5) > HIGH(4) > MEDIUM(3) > LOW(2) > MINIMAL(1).
// Non-canonical values rank 0.
func (l UrgencyLevel) Rank() int {
	switch l {
	case UrgencyCritical:
		return 5
	case UrgencyHigh:
		return 4
	case UrgencyMedium:
		return 3
	case UrgencyLow:
		return 2
	case UrgencyMinimal:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the canonical levels.
func (l UrgencyLevel) Valid() bool {
	return l.Rank() > 0
}

// Outranks reports whether l is strictly more urgent than other.
func (l UrgencyLevel) Outranks(other UrgencyLevel) bool {
	return l.Rank() > other.Rank()
}

// ParseUrgencyLevel accepts a level name in any case, ignoring surrounding
// whitespace and brackets.
func ParseUrgencyLevel(value string) (UrgencyLevel, error) {
	cleaned := strings.ToUpper(strings.Trim(strings.TrimSpace(value), "[]* "))
	level := UrgencyLevel(cleaned)
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownUrgency, value)
	}
	return level, nil
}

// ESILevel is the Emergency Severity Index level, 1 (most urgent) to 5.
type ESILevel int

const (
	ESILevel1 ESILevel = 1
	ESILevel2 ESILevel = 2
	ESILevel3 ESILevel = 3
	ESILevel4 ESILevel = 4
	ESILevel5 ESILevel = 5
)

// Valid reports whether e is within 1..5.
func (e ESILevel) Valid() bool {
	return e >= ESILevel1 && e <= ESILevel5
}

// Urgency maps an ESI level to its urgency name.
func (e ESILevel) Urgency() UrgencyLevel {
	switch e {
	case ESILevel1:
		return UrgencyCritical
	case ESILevel2:
		return UrgencyHigh
	case ESILevel3:
		return UrgencyMedium
	case ESILevel4:
		return UrgencyLow
	case ESILevel5:
		return UrgencyMinimal
	default:
		return UrgencyMedium
	}
}

// TimeToResponse is the target time until a clinician sees the patient.
func (e ESILevel) TimeToResponse() string {
	switch e {
	case ESILevel1:
		return "Immediate (0 minutes)"
	case ESILevel2:
		return "Within 10 minutes"
	case ESILevel3:
		return "Within 30 minutes"
	case ESILevel4:
		return "Within 1-2 hours"
	case ESILevel5:
		return "As needed"
	default:
		return "TBD"
	}
}

// FusionMethod tags which fusion branch produced a verdict.
type FusionMethod string

const (
	FusionRuleOnly         FusionMethod = "rule-only"
	FusionSafetyEscalation FusionMethod = "safety-escalation"
	FusionAIRefined        FusionMethod = "ai-refined"
	FusionAIConfirmed      FusionMethod = "ai-confirmed"
	FusionNonsenseFilter   FusionMethod = "nonsense-filter"
)

// RuleVerdict is the output of the deterministic rule matcher.
type RuleVerdict struct {
	Level     ESILevel `json:"level"`
	Category  string   `json:"category,omitempty"`
	Matched   string   `json:"matched,omitempty"`
	Rationale string   `json:"rationale"`
	Point     string   `json:"decision_point"`
}

// ContextVerdict is the output of the contextual classifier collaborator.
type ContextVerdict struct {
	Level     UrgencyLevel `json:"level"`
	Score     float64      `json:"score"`
	Rationale string       `json:"rationale"`
}

// FinalVerdict is the fused urgency decision. Level is always canonical and
// Score is within 0..100.
type FinalVerdict struct {
	Level          UrgencyLevel `json:"level"`
	Score          float64      `json:"score"`
	Rationale      string       `json:"rationale"`
	RuleLevel      ESILevel     `json:"rule_level"`
	Method         FusionMethod `json:"method"`
	TimeToResponse string       `json:"time_to_response"`
}

// ClampScore bounds a score to 0..100. NaN maps to the neutral 50.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 50
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ESI maps an urgency name back to its ESI level. Non-canonical values map to 3.
func (l UrgencyLevel) ESI() ESILevel {
	switch l {
	case UrgencyCritical:
		return ESILevel1
	case UrgencyHigh:
		return ESILevel2
	case UrgencyLow:
		return ESILevel4
	case UrgencyMinimal:
		return ESILevel5
	default:
		return ESILevel3
	}
}
