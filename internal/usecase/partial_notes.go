package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

type noteRequest struct {
	transcript string
	locale     domain.Locale
	words      int
}

// noteRefresher regenerates the partial note off the worker goroutine. Only
// the most recent request is kept; older pending ones are replaced.
type noteRefresher struct {
	sessionID string
	notes     ports.NoteGenerator
	events    ports.EventSink
	logger    *slog.Logger

	requests chan noteRequest

	mu     sync.Mutex
	latest *domain.ClinicalNote
}

func newNoteRefresher(sessionID string, notes ports.NoteGenerator, events ports.EventSink, logger *slog.Logger) *noteRefresher {
	return &noteRefresher{
		sessionID: sessionID,
		notes:     notes,
		events:    events,
		logger:    logger,
		requests:  make(chan noteRequest, 1),
	}
}

// request schedules a refresh without blocking.
func (r *noteRefresher) request(req noteRequest) {
	if r.notes == nil {
		return
	}
	select {
	case <-r.requests:
	default:
	}
	select {
	case r.requests <- req:
	default:
	}
}

func (r *noteRefresher) run(ctx context.Context) {
	if r.notes == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.requests:
			note, err := r.notes.GenerateNote(ctx, req.transcript, req.locale)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("partial note failed", "words", req.words, "error", err)
				r.events.SessionError(r.sessionID, domain.ErrorCodeNote, fmt.Sprintf("partial note failed: %v", err))
				continue
			}
			r.mu.Lock()
			r.latest = &note
			r.mu.Unlock()
			r.logger.Debug("partial note refreshed", "words", req.words)
			r.events.PartialNote(r.sessionID, note)
		}
	}
}

// snapshot returns a copy of the latest note, or nil before the first refresh.
func (r *noteRefresher) snapshot() *domain.ClinicalNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return nil
	}
	note := *r.latest
	return &note
}

// crossedBoundary reports whether a word count moving from before to after
// passes a multiple of interval.
func crossedBoundary(before, after, interval int) bool {
	if interval <= 0 || after <= before {
		return false
	}
	return after/interval > before/interval
}
