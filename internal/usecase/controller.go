package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

var (
	ErrNoActiveSession    = errors.New("no active call session")
	ErrInvalidState       = errors.New("operation not allowed in current session state")
	ErrSessionActive      = errors.New("a call session is already active")
	ErrDecoderUnavailable = errors.New("audio decoder unavailable")
	ErrNoTranscript       = errors.New("no transcript")
)

// Config controls session behavior.
type Config struct {
	Decode              ports.DecodeConfig
	DrainTimeout        time.Duration
	WorkerStopGrace     time.Duration
	PartialNoteInterval int
	MinChunkBytes       int
}

// SessionController owns at most one live call session. One controller is
// created per client connection.
type SessionController struct {
	decoder     ports.AudioDecoder
	transcriber ports.Transcriber
	notes       ports.NoteGenerator
	events      ports.EventSink
	logger      *slog.Logger
	finalizer   callFinalizer
	cfg         Config

	newID func() string
	now   func() time.Time

	mu      sync.Mutex
	current *callSession
}

func NewSessionController(
	decoder ports.AudioDecoder,
	transcriber ports.Transcriber,
	notes ports.NoteGenerator,
	classifier ports.UrgencyClassifier,
	store ports.CallStore,
	events ports.EventSink,
	logger *slog.Logger,
	cfg Config,
) *SessionController {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if cfg.WorkerStopGrace <= 0 {
		cfg.WorkerStopGrace = 2 * time.Second
	}
	if cfg.Decode.SampleRate <= 0 {
		cfg.Decode.SampleRate = 16000
	}
	if cfg.Decode.Channels <= 0 {
		cfg.Decode.Channels = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")

	return &SessionController{
		decoder:     decoder,
		transcriber: transcriber,
		notes:       notes,
		events:      events,
		logger:      logger,
		finalizer: callFinalizer{
			notes:      notes,
			classifier: classifier,
			store:      store,
			events:     events,
			logger:     logger,
			now:        time.Now,
		},
		cfg:   cfg,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Start opens a new call session and spawns its worker.
func (c *SessionController) Start(ctx context.Context, locale domain.Locale) (domain.StartResult, error) {
	if err := c.decoder.Available(); err != nil {
		c.events.SessionError("", domain.ErrorCodeStartup, err.Error())
		return domain.StartResult{}, fmt.Errorf("%w: %v", ErrDecoderUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.getState().Terminal() {
		return domain.StartResult{}, ErrSessionActive
	}

	id := c.newID()
	logger := c.logger.With("session_id", id)
	sessionCtx, cancel := context.WithCancel(ctx)
	session := &callSession{
		id:         id,
		startedAt:  c.now(),
		cancel:     cancel,
		queue:      newChunkQueue(),
		aggregator: newTranscriptAggregator(),
		notes:      newNoteRefresher(id, c.notes, c.events, logger),
		workerDone: make(chan struct{}),
		state:      domain.SessionStateActive,
		locale:     locale,
	}
	worker := chunkWorker{
		session:     session,
		decoder:     c.decoder,
		transcriber: c.transcriber,
		events:      c.events,
		logger:      logger,
		decodeCfg:   c.cfg.Decode,
		noteEvery:   c.cfg.PartialNoteInterval,
	}
	c.current = session

	go worker.run(sessionCtx)
	go session.notes.run(sessionCtx)

	logger.Info("call started", "locale", locale)
	c.events.SessionStateChanged(id, domain.SessionStateActive, domain.SessionReasonCallStarted)
	return domain.StartResult{Status: "started", SessionID: id, Locale: locale}, nil
}

// Submit enqueues one audio chunk and returns immediately.
func (c *SessionController) Submit(data []byte) (domain.Ack, error) {
	session, err := c.getCurrent()
	if err != nil {
		return domain.Ack{}, err
	}
	if state := session.getState(); !state.AcceptsChunks() {
		return domain.Ack{}, fmt.Errorf("%w: submit in %s", ErrInvalidState, state)
	}

	if len(data) < c.cfg.MinChunkBytes {
		c.logger.Debug("buffering undersized chunk", "session_id", session.id, "bytes", len(data))
		return domain.Ack{Status: "buffering", SessionID: session.id, Locale: session.getLocale()}, nil
	}

	chunk := domain.AudioChunk{Seq: session.takeSeq(), Data: append([]byte(nil), data...)}
	depth, ok := session.queue.push(chunk)
	if !ok {
		return domain.Ack{}, fmt.Errorf("%w: session is closing", ErrInvalidState)
	}

	transcript, words := session.aggregator.Snapshot()
	return domain.Ack{
		Status:          "processing",
		SessionID:       session.id,
		QueueDepth:      depth,
		WordCount:       words,
		TranscriptSoFar: transcript,
		PartialNote:     session.notes.snapshot(),
		Locale:          session.getLocale(),
	}, nil
}

// End drains the queue, stops the worker and finalizes the call.
func (c *SessionController) End(ctx context.Context) (domain.CallResult, error) {
	return c.end(ctx, domain.SessionReasonDraining)
}

// Disconnect finalizes a live session when the client goes away. It is a
// no-op when nothing is live.
func (c *SessionController) Disconnect(ctx context.Context) error {
	session, err := c.getCurrent()
	if err != nil || session.getState() != domain.SessionStateActive {
		return nil
	}
	_, err = c.end(ctx, domain.SessionReasonDisconnected)
	if errors.Is(err, ErrInvalidState) {
		return nil
	}
	return err
}

// Status returns a snapshot of the current session.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()
	if session == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}

	state := session.getState()
	_, words := session.aggregator.Snapshot()
	return domain.Status{
		State:      state,
		Active:     state.AcceptsChunks(),
		SessionID:  session.id,
		Locale:     session.getLocale(),
		QueueDepth: session.queue.pending(),
		WordCount:  words,
	}
}

func (c *SessionController) end(ctx context.Context, reason domain.SessionStateReason) (domain.CallResult, error) {
	session, err := c.getCurrent()
	if err != nil {
		return domain.CallResult{}, err
	}
	if !session.transition(domain.SessionStateActive, domain.SessionStateDraining) {
		return domain.CallResult{}, fmt.Errorf("%w: end in %s", ErrInvalidState, session.getState())
	}
	logger := c.logger.With("session_id", session.id)
	c.events.SessionStateChanged(session.id, domain.SessionStateDraining, reason)

	timedOut := c.drain(ctx, session)
	session.cancel()
	c.waitForWorker(session)
	abandoned := session.queue.close()
	transcript, words := session.aggregator.Seal()
	locale := session.getLocale()

	if timedOut || abandoned > 0 {
		logger.Warn("drain incomplete, finalizing with partial transcript",
			"timed_out", timedOut,
			"abandoned_chunks", abandoned,
		)
		c.events.SessionStateChanged(session.id, domain.SessionStateDraining, domain.SessionReasonDrainTimedOut)
	}

	if transcript == "" {
		session.setState(domain.SessionStateError)
		logger.Warn("call ended without transcript")
		c.events.SessionStateChanged(session.id, domain.SessionStateError, domain.SessionReasonNoTranscript)
		return domain.CallResult{}, ErrNoTranscript
	}

	result, finalReason := c.finalizer.Finalize(ctx, finalizeInput{
		sessionID:  session.id,
		locale:     locale,
		transcript: transcript,
		words:      words,
		startedAt:  session.startedAt,
	})
	session.setState(domain.SessionStateFinalized)

	logger.Info("call finalized",
		"locale", locale,
		"words", words,
		"level", result.Urgency.Level,
		"method", result.Urgency.Method,
	)
	c.events.FinalVerdict(session.id, result.Urgency)
	c.events.SessionStateChanged(session.id, domain.SessionStateFinalized, finalReason)
	return result, nil
}

// drain waits until the queue is empty, the worker has stopped or the drain
// timeout elapses. It reports whether the timeout was hit.
func (c *SessionController) drain(ctx context.Context, session *callSession) bool {
	timer := time.NewTimer(c.cfg.DrainTimeout)
	defer timer.Stop()

	for session.queue.pending() > 0 {
		if session.workerStopped() {
			return false
		}
		select {
		case <-session.queue.emptied:
		case <-session.workerDone:
		case <-timer.C:
			return true
		case <-ctx.Done():
			return true
		}
	}
	return false
}

func (c *SessionController) waitForWorker(session *callSession) {
	timer := time.NewTimer(c.cfg.WorkerStopGrace)
	defer timer.Stop()
	select {
	case <-session.workerDone:
	case <-timer.C:
		c.logger.Warn("worker did not stop within grace period", "session_id", session.id)
	}
}

func (c *SessionController) getCurrent() (*callSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}
