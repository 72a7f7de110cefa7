package openai

import (
	"context"
	"fmt"
	"strings"

	"calltriage/internal/domain"
)

const noteMaxTokens = 500

// GenerateNote extracts a SOAP note from a call transcript.
func (c *Client) GenerateNote(ctx context.Context, transcript string, locale domain.Locale) (domain.ClinicalNote, error) {
	language := locale.DisplayName()
	missing := "[Not provided]"
	if locale == domain.LocaleJapanese {
		missing = "[不明]"
	}

	system := fmt.Sprintf("You are an expert emergency medical dispatcher. You ONLY write in %s. Never mix languages.", language)
	prompt := fmt.Sprintf(`Analyze this emergency call transcript and extract clinical SOAP notes in %[1]s.
If any piece of information is missing, use exactly "%[2]s".
In the OBJECTIVE section list the patient's name, age, address, phone and blood type when mentioned.

If the transcript is nonsense, testing or unrelated to a medical emergency, do not write a medical plan:
S: [Testing/Nonsense detected]
A: [No medical emergency detected / Non-medical input]
P: [No action needed / Non-medical input]

TRANSCRIPT:
%[3]s

Respond in %[1]s using exactly these section headers:
S: ...
O: ...
A: ...
P: ...`, language, missing, transcript)

	content, err := c.complete(ctx, system, prompt, noteMaxTokens)
	if err != nil {
		return domain.ClinicalNote{}, fmt.Errorf("note generation: %w", err)
	}
	return parseNote(content), nil
}

// parseNote splits S:/O:/A:/P: (or spelled-out) sections. Lines before the
// first header are ignored; continuation lines are joined with newlines.
func parseNote(content string) domain.ClinicalNote {
	var note domain.ClinicalNote
	var current *string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if section, rest, ok := noteSection(&note, line); ok {
			current = section
			line = rest
		}
		if current == nil || line == "" {
			continue
		}
		if *current == "" {
			*current = line
		} else {
			*current += "\n" + line
		}
	}
	return note
}

func noteSection(note *domain.ClinicalNote, line string) (*string, string, bool) {
	headers := []struct {
		short, long string
		target      *string
	}{
		{"S:", "SUBJECTIVE", &note.Subjective},
		{"O:", "OBJECTIVE", &note.Objective},
		{"A:", "ASSESSMENT", &note.Assessment},
		{"P:", "PLAN", &note.Plan},
	}
	trimmed := strings.TrimLeft(line, "*#- ")
	for _, h := range headers {
		if after, ok := strings.CutPrefix(trimmed, h.short); ok {
			return h.target, strings.TrimSpace(strings.Trim(after, "* ")), true
		}
		if len(trimmed) < len(h.long) || !strings.EqualFold(trimmed[:len(h.long)], h.long) {
			continue
		}
		// Spelled-out headers need a colon so prose like "Planned ..." stays text.
		if after, ok := strings.CutPrefix(strings.TrimLeft(trimmed[len(h.long):], "* "), ":"); ok {
			return h.target, strings.TrimSpace(strings.Trim(after, "* ")), true
		}
	}
	return nil, "", false
}
