package ports

import (
	"context"

	"calltriage/internal/domain"
)

// DecodeConfig describes the normalized audio the transcriber expects.
type DecodeConfig struct {
	SampleRate int
	Channels   int
}

// AudioDecoder converts one raw container fragment into normalized audio.
type AudioDecoder interface {
	// Available reports whether the external decode toolchain can be used.
	Available() error
	Decode(ctx context.Context, chunk []byte, cfg DecodeConfig) ([]byte, error)
}

// Transcriber turns one decoded chunk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, localeHint domain.Locale) (domain.Transcription, error)
}

// NoteGenerator produces a structured clinical note from a transcript.
type NoteGenerator interface {
	GenerateNote(ctx context.Context, transcript string, locale domain.Locale) (domain.ClinicalNote, error)
}

// ContextClassifier is the probabilistic urgency collaborator.
type ContextClassifier interface {
	ClassifyContext(ctx context.Context, transcript string, note domain.ClinicalNote, locale domain.Locale) (domain.ContextVerdict, error)
}

// UrgencyClassifier produces the fused final verdict. It never fails.
type UrgencyClassifier interface {
	Classify(ctx context.Context, transcript string, note domain.ClinicalNote, locale domain.Locale) domain.FinalVerdict
}

// CallStore persists finalized calls.
type CallStore interface {
	SaveCall(ctx context.Context, record domain.CallRecord) error
}

// EventSink receives session lifecycle events.
type EventSink interface {
	SessionStateChanged(sessionID string, state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(sessionID string, text string)
	PartialNote(sessionID string, note domain.ClinicalNote)
	FinalVerdict(sessionID string, verdict domain.FinalVerdict)
	SessionError(sessionID string, code domain.ErrorCode, detail string)
}
