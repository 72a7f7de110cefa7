package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

type chunkWorker struct {
	session     *callSession
	decoder     ports.AudioDecoder
	transcriber ports.Transcriber
	events      ports.EventSink
	logger      *slog.Logger
	decodeCfg   ports.DecodeConfig
	noteEvery   int
}

// run consumes the session queue one chunk at a time until ctx ends or the
// queue closes. A failing chunk is skipped; the loop keeps going.
func (w chunkWorker) run(ctx context.Context) {
	defer close(w.session.workerDone)

	for ctx.Err() == nil {
		chunk, ok := w.session.queue.pop(ctx)
		if !ok {
			return
		}
		w.process(ctx, chunk)
		w.session.queue.done()
	}
}

func (w chunkWorker) process(ctx context.Context, chunk domain.AudioChunk) {
	s := w.session
	started := time.Now()
	logger := w.logger.With("seq", chunk.Seq, "bytes", len(chunk.Data))

	audio, err := w.decoder.Decode(ctx, chunk.Data, w.decodeCfg)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("chunk abandoned during decode")
			return
		}
		logger.Warn("chunk decode failed, skipping", "error", err)
		w.events.SessionError(s.id, domain.ErrorCodeDecode, fmt.Sprintf("chunk %d: %v", chunk.Seq, err))
		return
	}

	locale := s.getLocale()
	result, err := w.transcriber.Transcribe(ctx, audio, locale)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("chunk abandoned during transcription")
			return
		}
		logger.Warn("chunk transcription failed, skipping", "error", err)
		w.events.SessionError(s.id, domain.ErrorCodeTranscription, fmt.Sprintf("chunk %d: %v", chunk.Seq, err))
		return
	}
	if ctx.Err() != nil {
		logger.Warn("chunk abandoned after transcription")
		return
	}

	w.maybeSwitchLocale(result.DetectedLocale)

	before, after, appended := s.aggregator.Append(result.Text)
	if !appended {
		logger.Debug("chunk produced no text", "elapsed", time.Since(started))
		return
	}
	transcript, _ := s.aggregator.Snapshot()
	logger.Debug("chunk transcribed", "words", after, "elapsed", time.Since(started))
	w.events.PartialTranscript(s.id, transcript)

	if s.getState() == domain.SessionStateActive && crossedBoundary(before, after, w.noteEvery) {
		s.notes.request(noteRequest{transcript: transcript, locale: s.getLocale(), words: after})
	}
}

// maybeSwitchLocale follows the language the transcriber detected. Unknown or
// unsupported detections are ignored.
func (w chunkWorker) maybeSwitchLocale(detected string) {
	if detected == "" {
		return
	}
	locale, err := domain.ParseLocale(detected)
	if err != nil {
		w.logger.Debug("ignoring detected language", "detected", detected)
		return
	}
	previous, changed := w.session.switchLocale(locale)
	if !changed {
		return
	}
	w.logger.Info("session locale switched", "from", previous, "to", locale)
	w.events.SessionStateChanged(w.session.id, w.session.getState(), domain.SessionReasonLocaleSwitched)
}
