package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"calltriage/internal/domain"
)

//go:embed criteria.yaml
var defaultCriteria []byte

// Category is a named, ordered list of trigger phrases.
type Category struct {
	Name    string   `yaml:"category"`
	Phrases []string `yaml:"phrases"`
}

// LocaleCriteria holds one locale's phrase tables keyed by ESI level.
type LocaleCriteria struct {
	Levels           map[int][]Category `yaml:"levels"`
	SystemicKeywords []string           `yaml:"systemic_keywords"`
	Substitutions    []Substitution     `yaml:"substitutions"`
}

// AdultVitals are the adult danger-zone vital sign limits. The waterfall does
// not consult them yet; they are kept as table data for custom criteria files.
type AdultVitals struct {
	HeartRateMax       int `yaml:"heart_rate_max"`
	RespiratoryRateMax int `yaml:"respiratory_rate_max"`
	SpO2Min            int `yaml:"spo2_min"`
}

// Thresholds are the numeric triggers used alongside the phrase tables.
type Thresholds struct {
	SpO2CriticalBelow int         `yaml:"spo2_critical_below"`
	SeverePainAtLeast int         `yaml:"severe_pain_at_least"`
	Adult             AdultVitals `yaml:"adult"`
}

// Table is the declarative criteria table: (level, category, locale) -> phrases.
type Table struct {
	Thresholds      Thresholds                `yaml:"thresholds"`
	NonsenseMarkers []string                  `yaml:"nonsense_markers"`
	Locales         map[string]LocaleCriteria `yaml:"locales"`
}

// DefaultTable returns the built-in criteria table.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultCriteria)
}

// LoadTable reads a criteria table from path. An empty or missing path yields
// the built-in table.
func LoadTable(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable()
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultTable()
		}
		return nil, fmt.Errorf("failed to read criteria file %q: %w", path, err)
	}

	table, err := ParseTable(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to parse criteria file %q: %w", path, err)
	}
	return table, nil
}

// ParseTable decodes, normalizes and validates a YAML criteria table.
func ParseTable(contents []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(contents, &table); err != nil {
		return nil, err
	}
	table.normalize()
	if err := table.validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// Categories returns the ordered categories for one locale and level.
func (t *Table) Categories(locale domain.Locale, level domain.ESILevel) []Category {
	criteria, ok := t.forLocale(locale)
	if !ok {
		return nil
	}
	return criteria.Levels[int(level)]
}

// Substitutions returns the locale's transcript rewrites.
func (t *Table) Substitutions(locale domain.Locale) []Substitution {
	criteria, ok := t.forLocale(locale)
	if !ok {
		return nil
	}
	return criteria.Substitutions
}

// SystemicKeywords returns the locale's systemic-location keywords.
func (t *Table) SystemicKeywords(locale domain.Locale) []string {
	criteria, ok := t.forLocale(locale)
	if !ok {
		return nil
	}
	return criteria.SystemicKeywords
}

func (t *Table) forLocale(locale domain.Locale) (LocaleCriteria, bool) {
	switch locale {
	case domain.LocaleEnglish, domain.LocaleJapanese:
		criteria, ok := t.Locales[string(locale)]
		return criteria, ok
	default:
		return LocaleCriteria{}, false
	}
}

func (t *Table) normalize() {
	if t.Thresholds.SpO2CriticalBelow <= 0 {
		t.Thresholds.SpO2CriticalBelow = 90
	}
	if t.Thresholds.SeverePainAtLeast <= 0 {
		t.Thresholds.SeverePainAtLeast = 8
	}
	t.NonsenseMarkers = normalizePhrases(t.NonsenseMarkers)

	for name, criteria := range t.Locales {
		for level, categories := range criteria.Levels {
			for i := range categories {
				categories[i].Name = strings.TrimSpace(categories[i].Name)
				categories[i].Phrases = normalizePhrases(categories[i].Phrases)
			}
			criteria.Levels[level] = categories
		}
		criteria.SystemicKeywords = normalizePhrases(criteria.SystemicKeywords)
		t.Locales[name] = criteria
	}
}

func (t *Table) validate() error {
	for _, locale := range domain.SupportedLocales() {
		criteria, ok := t.Locales[string(locale)]
		if !ok {
			return fmt.Errorf("missing criteria for locale %q", locale)
		}
		for level := domain.ESILevel1; level <= domain.ESILevel5; level++ {
			if _, ok := criteria.Levels[int(level)]; !ok {
				return fmt.Errorf("locale %q: missing level %d", locale, level)
			}
		}
		for level := range criteria.Levels {
			if !domain.ESILevel(level).Valid() {
				return fmt.Errorf("locale %q: level %d out of range", locale, level)
			}
		}
	}
	for name := range t.Locales {
		locale, err := domain.ParseLocale(name)
		if err != nil {
			return fmt.Errorf("criteria table: %w", err)
		}
		if string(locale) != name {
			return fmt.Errorf("criteria table: locale key %q must be written as %q", name, locale)
		}
	}
	return nil
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		normalized := strings.ToLower(strings.TrimSpace(phrase))
		if normalized == "" {
			continue
		}
		out = append(out, normalized)
	}
	return out
}
