package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"calltriage/internal/domain"
)

func postJSON(t *testing.T, h *harness, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(h.http.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, h *harness, path string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(h.http.URL + path)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{}, nil)
	var body map[string]any
	resp := getJSON(t, h, "/healthz", &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", resp.StatusCode, body)
	}
}

func TestClassifyUsesProvidedNote(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{}, nil)
	resp, body := postJSON(t, h, "/api/classify", map[string]any{
		"transcript": "心停止です",
		"locale":     "jp",
		"note":       map[string]string{"subjective": "provided"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	if body["locale"] != "ja" {
		t.Fatalf("expected ja locale, got %v", body["locale"])
	}
	if note, locale := h.classifier.seen(); note.Subjective != "provided" || locale != domain.LocaleJapanese {
		t.Fatalf("classifier saw %+v in %q", note, locale)
	}
	urgency := body["urgency"].(map[string]any)
	if urgency["level"] != "CRITICAL" || urgency["method"] != "rule-only" {
		t.Fatalf("unexpected urgency: %v", urgency)
	}
}

func TestClassifyGeneratesNoteWhenAbsent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{}, nil)
	resp, _ := postJSON(t, h, "/api/classify", map[string]any{"transcript": "my ankle hurts"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if note, locale := h.classifier.seen(); note.Subjective != "generated" || locale != domain.LocaleEnglish {
		t.Fatalf("expected generated note in default locale, got %+v %q", note, locale)
	}
}

func TestClassifyFallsBackToDefaultNote(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{err: errors.New("upstream down")}, nil)
	resp, body := postJSON(t, h, "/api/classify", map[string]any{"transcript": "my ankle hurts"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if note, _ := h.classifier.seen(); note != domain.UnavailableNote() {
		t.Fatalf("expected default note, got %+v", note)
	}
	note := body["note"].(map[string]any)
	if note["plan"] != domain.NoteUnavailable {
		t.Fatalf("unexpected note in response: %v", note)
	}
}

func TestClassifyRejectsBadRequests(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{}, nil)
	cases := []map[string]any{
		{},
		{"transcript": "   "},
		{"transcript": "hello", "locale": "de"},
	}
	for _, body := range cases {
		resp, decoded := postJSON(t, h, "/api/classify", body)
		if resp.StatusCode != http.StatusBadRequest || decoded["status"] != "error" {
			t.Fatalf("expected 400 for %v, got %d %v", body, resp.StatusCode, decoded)
		}
	}
}

func TestCallsEndpoints(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{records: []domain.CallRecord{{
		SessionID:   "call-9",
		Locale:      domain.LocaleEnglish,
		Transcript:  "twisted ankle",
		Verdict:     domain.FinalVerdict{Level: domain.UrgencyLow, Score: 30},
		WordCount:   2,
		Duration:    1500 * time.Millisecond,
		CompletedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}}}
	h := newHarness(t, fakeNotes{}, history)

	var list []map[string]any
	resp := getJSON(t, h, "/api/calls?limit=500", &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("unexpected list: %d %v", resp.StatusCode, list)
	}
	if got := history.lastLimit(); got != maxCallsLimit {
		t.Fatalf("expected limit clamp to %d, got %d", maxCallsLimit, got)
	}
	if list[0]["session_id"] != "call-9" || list[0]["duration_ms"] != float64(1500) {
		t.Fatalf("unexpected call view: %v", list[0])
	}

	var one map[string]any
	resp = getJSON(t, h, "/api/calls/call-9", &one)
	if resp.StatusCode != http.StatusOK || one["transcript"] != "twisted ankle" {
		t.Fatalf("unexpected call: %d %v", resp.StatusCode, one)
	}

	var missing map[string]any
	resp = getJSON(t, h, "/api/calls/nope", &missing)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var bad map[string]any
	resp = getJSON(t, h, "/api/calls?limit=zero", &bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCallsEndpointsWithoutPersistence(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{}, nil)
	var body map[string]any
	resp := getJSON(t, h, "/api/calls", &body)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestCallsEndpointStoreFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeNotes{}, &fakeHistory{err: errors.New("disk full")})
	var body map[string]any
	resp := getJSON(t, h, "/api/calls", &body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if got := h.history.lastLimit(); got != defaultCallsLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
}
