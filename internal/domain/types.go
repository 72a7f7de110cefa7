package domain

import "time"

// SessionState models the call session lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateActive    SessionState = "active"
	SessionStateDraining  SessionState = "draining"
	SessionStateFinalized SessionState = "finalized"
	SessionStateError     SessionState = "error"
)

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == SessionStateFinalized || s == SessionStateError
}

// AcceptsChunks reports whether audio may still be submitted in this state.
func (s SessionState) AcceptsChunks() bool {
	return s == SessionStateActive || s == SessionStateDraining
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonCallStarted         SessionStateReason = "call_started"
	SessionReasonDraining            SessionStateReason = "draining"
	SessionReasonDisconnected        SessionStateReason = "disconnected"
	SessionReasonDrainTimedOut       SessionStateReason = "drain_timed_out"
	SessionReasonVerdictReady        SessionStateReason = "verdict_ready"
	SessionReasonVerdictNotPersisted SessionStateReason = "verdict_not_persisted"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonLocaleSwitched      SessionStateReason = "locale_switched"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeDecode        ErrorCode = "decode"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeNote          ErrorCode = "note"
	ErrorCodeStore         ErrorCode = "store"
)

// AudioChunk is one opaque unit of streamed audio. Seq is its arrival position.
type AudioChunk struct {
	Seq  uint64
	Data []byte
}

// Transcription is the output of the transcription collaborator for one chunk.
type Transcription struct {
	Text           string
	DetectedLocale string
}

// ClinicalNote is the four-section structured note.
type ClinicalNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// NoteUnavailable fills every section of a note that could not be generated.
const NoteUnavailable = "Not available"

// UnavailableNote is the default note used when generation fails.
func UnavailableNote() ClinicalNote {
	return ClinicalNote{
		Subjective: NoteUnavailable,
		Objective:  NoteUnavailable,
		Assessment: NoteUnavailable,
		Plan:       NoteUnavailable,
	}
}

// Empty reports whether every section is blank.
func (n ClinicalNote) Empty() bool {
	return n.Subjective == "" && n.Objective == "" && n.Assessment == "" && n.Plan == ""
}

// StartResult is returned when a session becomes active.
type StartResult struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Locale    Locale `json:"locale"`
}

// Ack is the non-blocking acknowledgement for a submitted chunk.
type Ack struct {
	Status          string        `json:"status"`
	SessionID       string        `json:"session_id"`
	QueueDepth      int           `json:"queue_depth"`
	WordCount       int           `json:"word_count"`
	TranscriptSoFar string        `json:"transcript_so_far"`
	PartialNote     *ClinicalNote `json:"partial_note,omitempty"`
	Locale          Locale        `json:"locale"`
}

// CallResult is the outcome of a finalized session.
type CallResult struct {
	Status      string       `json:"status"`
	SessionID   string       `json:"session_id"`
	Transcript  string       `json:"transcript"`
	Note        ClinicalNote `json:"note"`
	Urgency     FinalVerdict `json:"urgency"`
	WordCount   int          `json:"word_count"`
	Locale      Locale       `json:"locale"`
	CompletedAt time.Time    `json:"completed_at"`
}

// CallRecord is the persisted form of a finalized call.
type CallRecord struct {
	SessionID   string
	Locale      Locale
	Transcript  string
	Note        ClinicalNote
	Verdict     FinalVerdict
	WordCount   int
	Duration    time.Duration
	CompletedAt time.Time
}

// Status summarizes the current runtime status of a session.
type Status struct {
	State      SessionState `json:"state"`
	Active     bool         `json:"active"`
	SessionID  string       `json:"session_id,omitempty"`
	Locale     Locale       `json:"locale,omitempty"`
	QueueDepth int          `json:"queue_depth"`
	WordCount  int          `json:"word_count"`
}
