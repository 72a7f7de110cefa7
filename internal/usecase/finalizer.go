package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

type callFinalizer struct {
	notes      ports.NoteGenerator
	classifier ports.UrgencyClassifier
	store      ports.CallStore
	events     ports.EventSink
	logger     *slog.Logger
	now        func() time.Time
}

type finalizeInput struct {
	sessionID  string
	locale     domain.Locale
	transcript string
	words      int
	startedAt  time.Time
}

// Finalize generates the note, classifies and persists the call. Collaborator
// failures degrade; they never fail the call.
func (f callFinalizer) Finalize(ctx context.Context, in finalizeInput) (domain.CallResult, domain.SessionStateReason) {
	note := f.generateNote(ctx, in)
	verdict := f.classifier.Classify(ctx, in.transcript, note, in.locale)
	completedAt := f.now().UTC()

	result := domain.CallResult{
		Status:      "completed",
		SessionID:   in.sessionID,
		Transcript:  in.transcript,
		Note:        note,
		Urgency:     verdict,
		WordCount:   in.words,
		Locale:      in.locale,
		CompletedAt: completedAt,
	}

	if f.store == nil {
		return result, domain.SessionReasonVerdictReady
	}
	record := domain.CallRecord{
		SessionID:   in.sessionID,
		Locale:      in.locale,
		Transcript:  in.transcript,
		Note:        note,
		Verdict:     verdict,
		WordCount:   in.words,
		Duration:    completedAt.Sub(in.startedAt),
		CompletedAt: completedAt,
	}
	if err := f.store.SaveCall(ctx, record); err != nil {
		f.logger.Error("failed to persist call", "session_id", in.sessionID, "error", err)
		f.events.SessionError(in.sessionID, domain.ErrorCodeStore, fmt.Sprintf("call not persisted: %v", err))
		return result, domain.SessionReasonVerdictNotPersisted
	}
	return result, domain.SessionReasonVerdictReady
}

func (f callFinalizer) generateNote(ctx context.Context, in finalizeInput) domain.ClinicalNote {
	if f.notes == nil {
		return domain.UnavailableNote()
	}
	note, err := f.notes.GenerateNote(ctx, in.transcript, in.locale)
	if err != nil {
		f.logger.Warn("note generation failed, using default note", "session_id", in.sessionID, "error", err)
		f.events.SessionError(in.sessionID, domain.ErrorCodeNote, fmt.Sprintf("note generation failed: %v", err))
		return domain.UnavailableNote()
	}
	return note
}
