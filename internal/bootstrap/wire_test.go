package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"calltriage/internal/config"
	"calltriage/internal/domain"
)

func loadConfig(t *testing.T) config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("CALLTRIAGE_CRITERIA_FILE", "")
	t.Setenv("CALLTRIAGE_DB_PATH", filepath.Join(home, "calls.sqlite"))

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSuccess(t *testing.T) {
	cfg := loadConfig(t)

	services, err := Build(cfg, noopEventSink{}, quietLogger())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { services.Close() })

	if services.Server == nil || services.Classifier == nil || services.Store == nil {
		t.Fatalf("expected fully wired services: %+v", services)
	}
	first, second := services.NewController(), services.NewController()
	if first == nil || first == second {
		t.Fatalf("expected a distinct controller per connection")
	}
	if status := first.Status(); status.State != domain.SessionStateIdle {
		t.Fatalf("expected idle controller, got %s", status.State)
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestBuildClassifierRunsWithoutCollaborators(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Store.Path = ""
	cfg.OpenAI.APIKey = ""

	services, err := Build(cfg, noopEventSink{}, quietLogger())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Store != nil {
		t.Fatalf("expected persistence disabled")
	}

	verdict := services.Classifier.Classify(context.Background(), "patient in cardiac arrest", domain.ClinicalNote{}, domain.LocaleEnglish)
	if verdict.Level != domain.UrgencyCritical || verdict.RuleLevel != domain.ESILevel1 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestBuildFailsOnInvalidCriteria(t *testing.T) {
	cfg := loadConfig(t)
	criteria := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(criteria, []byte("locales: [not, a, map]\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg.Rules.CriteriaPath = criteria

	if _, err := Build(cfg, noopEventSink{}, quietLogger()); err == nil {
		t.Fatalf("expected build error due to invalid criteria")
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(string, domain.SessionState, domain.SessionStateReason) {}
func (noopEventSink) PartialTranscript(string, string)                                          {}
func (noopEventSink) PartialNote(string, domain.ClinicalNote)                                   {}
func (noopEventSink) FinalVerdict(string, domain.FinalVerdict)                                  {}
func (noopEventSink) SessionError(string, domain.ErrorCode, string)                             {}
