package main

import (
	"context"
	"log/slog"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

// App is the application root. It renders session events as log records.
type App struct {
	logger *slog.Logger
}

var _ ports.EventSink = (*App)(nil)

func NewApp(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{logger: logger.With("component", "events")}
}

// SessionStateChanged logs session lifecycle updates.
func (a *App) SessionStateChanged(sessionID string, state domain.SessionState, reason domain.SessionStateReason) {
	level := slog.LevelInfo
	switch reason {
	case domain.SessionReasonDrainTimedOut, domain.SessionReasonNoTranscript, domain.SessionReasonVerdictNotPersisted:
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, sessionReasonMessage(reason),
		"session_id", sessionID,
		"state", state,
		"reason", reason,
	)
}

// PartialTranscript logs live transcript growth.
func (a *App) PartialTranscript(sessionID string, text string) {
	a.logger.Debug("partial transcript", "session_id", sessionID, "chars", len(text))
}

// PartialNote logs a refreshed partial note.
func (a *App) PartialNote(sessionID string, note domain.ClinicalNote) {
	a.logger.Debug("partial note refreshed", "session_id", sessionID, "assessment", note.Assessment)
}

// FinalVerdict logs the fused urgency decision.
func (a *App) FinalVerdict(sessionID string, verdict domain.FinalVerdict) {
	a.logger.Info("urgency verdict",
		"session_id", sessionID,
		"level", verdict.Level,
		"score", verdict.Score,
		"rule_level", verdict.RuleLevel,
		"method", verdict.Method,
		"time_to_response", verdict.TimeToResponse,
	)
}

// SessionError logs backend errors.
func (a *App) SessionError(sessionID string, code domain.ErrorCode, detail string) {
	level := slog.LevelWarn
	if code == domain.ErrorCodeStartup || code == domain.ErrorCodeStore {
		level = slog.LevelError
	}
	a.logger.Log(context.Background(), level, errorMessage(code, detail),
		"session_id", sessionID,
		"code", code,
		"detail", detail,
	)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonCallStarted:
		return "Call started"
	case domain.SessionReasonDraining:
		return "Call ended. Draining audio..."
	case domain.SessionReasonDisconnected:
		return "Client disconnected. Finalizing call..."
	case domain.SessionReasonDrainTimedOut:
		return "Drain timed out; finalizing partial transcript"
	case domain.SessionReasonVerdictReady:
		return "Verdict ready"
	case domain.SessionReasonVerdictNotPersisted:
		return "Verdict ready (not persisted)"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonLocaleSwitched:
		return "Call language switched"
	default:
		return "Session state changed"
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDecode:
		return "Audio chunk could not be decoded"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeNote:
		return "Clinical note unavailable"
	case domain.ErrorCodeStore:
		return "Call persistence failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
