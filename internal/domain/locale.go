package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedLocale = errors.New("unsupported locale")

// Locale identifies one of the supported call languages.
type Locale string

const (
	LocaleEnglish  Locale = "en"
	LocaleJapanese Locale = "ja"
)

// SupportedLocales lists every locale with its own criteria tables.
func SupportedLocales() []Locale {
	return []Locale{LocaleEnglish, LocaleJapanese}
}

// ParseLocale resolves a language code or alias to a supported locale.
func ParseLocale(value string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "en", "en-us", "en-gb", "english":
		return LocaleEnglish, nil
	case "ja", "jp", "ja-jp", "japanese":
		return LocaleJapanese, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocale, value)
	}
}

// DisplayName is the upper-case language name used in collaborator prompts.
func (l Locale) DisplayName() string {
	switch l {
	case LocaleJapanese:
		return "JAPANESE"
	default:
		return "ENGLISH"
	}
}
