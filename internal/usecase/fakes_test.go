package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

type fakeDecoder struct {
	unavailable error
}

func (f *fakeDecoder) Available() error { return f.unavailable }

func (f *fakeDecoder) Decode(_ context.Context, chunk []byte, _ ports.DecodeConfig) ([]byte, error) {
	if strings.HasPrefix(string(chunk), "bad") {
		return nil, errors.New("invalid data found when processing input")
	}
	return chunk, nil
}

// fakeTranscriber returns the decoded bytes as text. Chunks starting with
// "block" wait for cancellation, "slow" sleeps, "fail" errors, and
// "lang=xx " sets the detected language.
type fakeTranscriber struct {
	mu        sync.Mutex
	running   int
	maxActive int
	hints     []domain.Locale
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, hint domain.Locale) (domain.Transcription, error) {
	f.mu.Lock()
	f.running++
	if f.running > f.maxActive {
		f.maxActive = f.running
	}
	f.hints = append(f.hints, hint)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	text := string(audio)
	switch {
	case strings.HasPrefix(text, "block"):
		<-ctx.Done()
		return domain.Transcription{}, ctx.Err()
	case strings.HasPrefix(text, "slow"):
		time.Sleep(15 * time.Millisecond)
	case strings.HasPrefix(text, "fail"):
		return domain.Transcription{}, errors.New("transcription service returned 500")
	}

	detected := ""
	if strings.HasPrefix(text, "lang=") {
		detected = text[5:7]
		text = strings.TrimSpace(text[7:])
	}
	return domain.Transcription{Text: text, DetectedLocale: detected}, nil
}

func (f *fakeTranscriber) snapshotHints() []domain.Locale {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Locale, len(f.hints))
	copy(out, f.hints)
	return out
}

type fakeNotes struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeNotes) GenerateNote(_ context.Context, transcript string, _ domain.Locale) (domain.ClinicalNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, transcript)
	if f.err != nil {
		return domain.ClinicalNote{}, f.err
	}
	return domain.ClinicalNote{Subjective: transcript, Plan: "dispatch"}, nil
}

func (f *fakeNotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeClassifier struct {
	mu         sync.Mutex
	transcript string
	note       domain.ClinicalNote
	locale     domain.Locale
}

func (f *fakeClassifier) Classify(_ context.Context, transcript string, note domain.ClinicalNote, locale domain.Locale) domain.FinalVerdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = transcript
	f.note = note
	f.locale = locale
	return domain.FinalVerdict{
		Level:          domain.UrgencyHigh,
		Score:          85,
		Rationale:      "fake",
		RuleLevel:      domain.ESILevel2,
		Method:         domain.FusionRuleOnly,
		TimeToResponse: domain.ESILevel2.TimeToResponse(),
	}
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	records []domain.CallRecord
}

func (f *fakeStore) SaveCall(_ context.Context, record domain.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeStore) snapshot() []domain.CallRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CallRecord, len(f.records))
	copy(out, f.records)
	return out
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []stateEvent
	partials []string
	notes    []domain.ClinicalNote
	verdicts []domain.FinalVerdict
	errors   []errEvent
}

type stateEvent struct {
	sessionID string
	state     domain.SessionState
	reason    domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(sessionID string, state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{sessionID: sessionID, state: state, reason: reason})
}

func (f *fakeEventSink) PartialTranscript(_ string, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) PartialNote(_ string, note domain.ClinicalNote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
}

func (f *fakeEventSink) FinalVerdict(_ string, verdict domain.FinalVerdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts = append(f.verdicts, verdict)
}

func (f *fakeEventSink) SessionError(_ string, code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) noteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func (f *fakeEventSink) hasReason(reason domain.SessionStateReason) bool {
	for _, state := range f.snapshotStates() {
		if state.reason == reason {
			return true
		}
	}
	return false
}

type harness struct {
	controller  *SessionController
	decoder     *fakeDecoder
	transcriber *fakeTranscriber
	notes       *fakeNotes
	classifier  *fakeClassifier
	store       *fakeStore
	events      *fakeEventSink
}

func newHarness(cfg Config) *harness {
	h := &harness{
		decoder:     &fakeDecoder{},
		transcriber: &fakeTranscriber{},
		notes:       &fakeNotes{},
		classifier:  &fakeClassifier{},
		store:       &fakeStore{},
		events:      &fakeEventSink{},
	}
	h.controller = NewSessionController(h.decoder, h.transcriber, h.notes, h.classifier, h.store, h.events, nil, cfg)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
