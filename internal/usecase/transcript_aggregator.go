package usecase

import (
	"strings"
	"sync"
)

// transcriptAggregator is the append-only transcript of one call. Segments are
// joined with a single space in arrival order.
type transcriptAggregator struct {
	mu       sync.Mutex
	segments []string
	words    int
	sealed   bool
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

// Append adds one chunk's text and returns the word counts before and after.
// Appends after Seal are dropped.
func (a *transcriptAggregator) Append(text string) (before int, after int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before = a.words
	text = strings.TrimSpace(text)
	if text == "" || a.sealed {
		return before, before, false
	}
	a.segments = append(a.segments, text)
	a.words += len(strings.Fields(text))
	return before, a.words, true
}

// Snapshot returns the transcript so far and its word count.
func (a *transcriptAggregator) Snapshot() (string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.segments, " "), a.words
}

// Seal freezes the transcript and returns its final form.
func (a *transcriptAggregator) Seal() (string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
	return strings.Join(a.segments, " "), a.words
}
