package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Substitution rewrites caller phrasing into the wording used by the phrase
// tables. Literal substitutions are case-insensitive.
type Substitution struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Regex bool   `yaml:"regex"`
}

type compiledSubstitution struct {
	re          *regexp.Regexp
	replacement string
}

// normalizer lower-cases text and applies substitutions until the text is stable.
type normalizer struct {
	subs      []compiledSubstitution
	loopLimit int
}

func newNormalizer(subs []Substitution, loopLimit int) (*normalizer, error) {
	if loopLimit <= 0 {
		loopLimit = 10
	}
	compiled := make([]compiledSubstitution, 0, len(subs))
	for index, sub := range subs {
		c, err := compileSubstitution(sub)
		if err != nil {
			return nil, fmt.Errorf("substitution %d: %w", index+1, err)
		}
		compiled = append(compiled, c)
	}
	return &normalizer{subs: compiled, loopLimit: loopLimit}, nil
}

func compileSubstitution(sub Substitution) (compiledSubstitution, error) {
	from := strings.TrimSpace(sub.From)
	if from == "" {
		return compiledSubstitution{}, errors.New("substitution source cannot be empty")
	}
	pattern := regexp.QuoteMeta(strings.ToLower(from))
	if sub.Regex {
		pattern = from
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return compiledSubstitution{}, fmt.Errorf("invalid pattern %q: %w", from, err)
	}
	return compiledSubstitution{re: re, replacement: strings.ToLower(sub.To)}, nil
}

// Apply normalizes text for matching.
func (n *normalizer) Apply(text string) string {
	result := strings.ToLower(strings.TrimSpace(text))
	if n == nil || len(n.subs) == 0 {
		return result
	}

	for i := 0; i < n.loopLimit; i++ {
		changed := false
		for _, sub := range n.subs {
			next := sub.re.ReplaceAllString(result, sub.replacement)
			if next != result {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result
}
