package rules

import (
	"errors"
	"fmt"
	"strings"

	"calltriage/internal/domain"
)

const baselineRationale = "Standard evaluation needed - ESI Level 3 baseline"

// Decision points of the ESI waterfall.
const (
	PointA         = "A"
	PointB         = "B"
	PointC0        = "C0"
	PointC1        = "C1"
	PointC2        = "C2"
	PointCBaseline = "C2-baseline"
)

// Matcher applies the ESI decision waterfall to a transcript.
type Matcher struct {
	table       *Table
	normalizers map[domain.Locale]*normalizer
}

// NewMatcher compiles the table's substitutions for every supported locale.
func NewMatcher(table *Table) (*Matcher, error) {
	if table == nil {
		return nil, errors.New("criteria table is required")
	}
	normalizers := make(map[domain.Locale]*normalizer, len(domain.SupportedLocales()))
	for _, locale := range domain.SupportedLocales() {
		n, err := newNormalizer(table.Substitutions(locale), 0)
		if err != nil {
			return nil, fmt.Errorf("locale %q: %w", locale, err)
		}
		normalizers[locale] = n
	}
	return &Matcher{table: table, normalizers: normalizers}, nil
}

// Table returns the criteria table backing the matcher.
func (m *Matcher) Table() *Table {
	return m.table
}

// Normalize lower-cases and rewrites a transcript for matching.
func (m *Matcher) Normalize(transcript string, locale domain.Locale) string {
	return m.normalizers[locale].Apply(transcript)
}

// Match returns the first decision point the transcript satisfies. Every
// transcript gets a verdict; unmatched text falls through to the level 3 baseline.
func (m *Matcher) Match(transcript string, locale domain.Locale) domain.RuleVerdict {
	text := m.Normalize(transcript, locale)
	vitals := ExtractVitals(text)
	thresholds := m.table.Thresholds

	if category, phrase, ok := m.scan(text, locale, domain.ESILevel1); ok {
		return domain.RuleVerdict{
			Level:     domain.ESILevel1,
			Category:  category,
			Matched:   phrase,
			Rationale: fmt.Sprintf("ESI Level 1: %s detected (%s)", phrase, category),
			Point:     PointA,
		}
	}
	if vitals.SpO2 != nil && *vitals.SpO2 < thresholds.SpO2CriticalBelow {
		return domain.RuleVerdict{
			Level:     domain.ESILevel1,
			Category:  "vital_signs",
			Matched:   fmt.Sprintf("spo2 %d", *vitals.SpO2),
			Rationale: fmt.Sprintf("ESI Level 1: SpO2 < %d%% (critical hypoxemia)", thresholds.SpO2CriticalBelow),
			Point:     PointA,
		}
	}

	if category, phrase, ok := m.scan(text, locale, domain.ESILevel2); ok {
		return domain.RuleVerdict{
			Level:     domain.ESILevel2,
			Category:  category,
			Matched:   phrase,
			Rationale: fmt.Sprintf("ESI Level 2: %s (high-risk %s)", phrase, category),
			Point:     PointB,
		}
	}
	if vitals.PainScore != nil && *vitals.PainScore >= thresholds.SeverePainAtLeast {
		if keyword, ok := containsAny(text, m.table.SystemicKeywords(locale)); ok {
			return domain.RuleVerdict{
				Level:     domain.ESILevel2,
				Category:  "severe_pain_systemic",
				Matched:   keyword,
				Rationale: fmt.Sprintf("ESI Level 2: Severe pain (>=%d/10) with systemic presentation", thresholds.SeverePainAtLeast),
				Point:     PointB,
			}
		}
	}

	if category, phrase, ok := m.scan(text, locale, domain.ESILevel5); ok {
		return domain.RuleVerdict{
			Level:     domain.ESILevel5,
			Category:  category,
			Matched:   phrase,
			Rationale: fmt.Sprintf("ESI Level 5: %s (no resources - %s)", phrase, category),
			Point:     PointC0,
		}
	}

	if category, phrase, ok := m.scan(text, locale, domain.ESILevel4); ok {
		return domain.RuleVerdict{
			Level:     domain.ESILevel4,
			Category:  category,
			Matched:   phrase,
			Rationale: fmt.Sprintf("ESI Level 4: %s (one resource - %s)", phrase, category),
			Point:     PointC1,
		}
	}

	if category, phrase, ok := m.scan(text, locale, domain.ESILevel3); ok {
		return domain.RuleVerdict{
			Level:     domain.ESILevel3,
			Category:  category,
			Matched:   phrase,
			Rationale: fmt.Sprintf("ESI Level 3: %s (multiple resources - %s)", phrase, category),
			Point:     PointC2,
		}
	}

	return domain.RuleVerdict{
		Level:     domain.ESILevel3,
		Category:  "baseline",
		Rationale: baselineRationale,
		Point:     PointCBaseline,
	}
}

func (m *Matcher) scan(text string, locale domain.Locale, level domain.ESILevel) (string, string, bool) {
	for _, category := range m.table.Categories(locale, level) {
		if phrase, ok := containsAny(text, category.Phrases); ok {
			return category.Name, phrase, true
		}
	}
	return "", "", false
}

func containsAny(text string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}
