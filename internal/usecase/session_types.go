package usecase

import (
	"context"
	"sync"
	"time"

	"calltriage/internal/domain"
)

// callSession is the state owned by one call. The transcript and the partial
// note cache are written only by the worker and the note refresher; everything
// else reads snapshots.
type callSession struct {
	id        string
	startedAt time.Time
	cancel    context.CancelFunc

	queue      *chunkQueue
	aggregator *transcriptAggregator
	notes      *noteRefresher
	workerDone chan struct{}

	stateMu sync.Mutex
	state   domain.SessionState
	locale  domain.Locale
	nextSeq uint64
}

func (s *callSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *callSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// transition moves from one state to another and reports whether it happened.
func (s *callSession) transition(from, to domain.SessionState) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *callSession) getLocale() domain.Locale {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.locale
}

// switchLocale updates the locale and reports whether it changed.
func (s *callSession) switchLocale(locale domain.Locale) (domain.Locale, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	previous := s.locale
	if previous == locale {
		return previous, false
	}
	s.locale = locale
	return previous, true
}

func (s *callSession) takeSeq() uint64 {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

func (s *callSession) workerStopped() bool {
	select {
	case <-s.workerDone:
		return true
	default:
		return false
	}
}
