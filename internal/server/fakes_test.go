package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"calltriage/internal/domain"
	"calltriage/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var errNoSession = errors.New("no active call session")

type fakeSession struct {
	mu          sync.Mutex
	started     bool
	locale      domain.Locale
	chunks      [][]byte
	endErr      error
	disconnects chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{disconnects: make(chan struct{}, 4)}
}

func (f *fakeSession) Start(_ context.Context, locale domain.Locale) (domain.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return domain.StartResult{}, errors.New("a call session is already active")
	}
	f.started = true
	f.locale = locale
	return domain.StartResult{Status: "started", SessionID: "call-1", Locale: locale}, nil
}

func (f *fakeSession) Submit(data []byte) (domain.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return domain.Ack{}, errNoSession
	}
	f.chunks = append(f.chunks, data)
	return domain.Ack{Status: "processing", SessionID: "call-1", QueueDepth: len(f.chunks), Locale: f.locale}, nil
}

func (f *fakeSession) End(context.Context) (domain.CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return domain.CallResult{}, f.endErr
	}
	if !f.started {
		return domain.CallResult{}, errNoSession
	}
	return domain.CallResult{
		Status:     "completed",
		SessionID:  "call-1",
		Transcript: "chest pain",
		Urgency:    domain.FinalVerdict{Level: domain.UrgencyHigh, Score: 85},
		Locale:     f.locale,
	}, nil
}

func (f *fakeSession) Disconnect(context.Context) error {
	f.disconnects <- struct{}{}
	return nil
}

func (f *fakeSession) chunkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

type fakeClassifier struct {
	mu     sync.Mutex
	note   domain.ClinicalNote
	locale domain.Locale
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, note domain.ClinicalNote, locale domain.Locale) domain.FinalVerdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.note = note
	f.locale = locale
	return domain.FinalVerdict{Level: domain.UrgencyCritical, Score: 100, RuleLevel: domain.ESILevel1, Method: domain.FusionRuleOnly}
}

func (f *fakeClassifier) seen() (domain.ClinicalNote, domain.Locale) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.note, f.locale
}

type fakeNotes struct {
	err error
}

func (f fakeNotes) GenerateNote(context.Context, string, domain.Locale) (domain.ClinicalNote, error) {
	if f.err != nil {
		return domain.ClinicalNote{}, f.err
	}
	return domain.ClinicalNote{Subjective: "generated"}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.CallRecord
	err     error
	limit   int
}

func (f *fakeHistory) GetCall(_ context.Context, id string) (domain.CallRecord, error) {
	if f.err != nil {
		return domain.CallRecord{}, f.err
	}
	for _, record := range f.records {
		if record.SessionID == id {
			return record, nil
		}
	}
	return domain.CallRecord{}, store.ErrCallNotFound
}

func (f *fakeHistory) RecentCalls(_ context.Context, limit int) ([]domain.CallRecord, error) {
	f.mu.Lock()
	f.limit = limit
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeHistory) lastLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit
}

type harness struct {
	server     *Server
	http       *httptest.Server
	session    *fakeSession
	classifier *fakeClassifier
	history    *fakeHistory
}

func newHarness(t *testing.T, notes fakeNotes, history *fakeHistory) *harness {
	t.Helper()
	h := &harness{
		session:    newFakeSession(),
		classifier: &fakeClassifier{},
		history:    history,
	}
	deps := Dependencies{
		NewSession:    func() CallSession { return h.session },
		Classifier:    h.classifier,
		Notes:         notes,
		DefaultLocale: domain.LocaleEnglish,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if history != nil {
		deps.History = history
	}
	h.server = New(deps)
	h.http = httptest.NewServer(h.server.Handler())
	t.Cleanup(h.http.Close)
	return h
}

func waitForSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
