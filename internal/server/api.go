package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"calltriage/internal/domain"
	"calltriage/internal/store"
)

const (
	defaultCallsLimit = 20
	maxCallsLimit     = 200
)

type classifyRequest struct {
	Transcript string               `json:"transcript" binding:"required"`
	Locale     string               `json:"locale"`
	Note       *domain.ClinicalNote `json:"note"`
}

type classifyResponse struct {
	Locale  domain.Locale       `json:"locale"`
	Note    domain.ClinicalNote `json:"note"`
	Urgency domain.FinalVerdict `json:"urgency"`
}

type callView struct {
	SessionID   string              `json:"session_id"`
	Locale      domain.Locale       `json:"locale"`
	Transcript  string              `json:"transcript"`
	Note        domain.ClinicalNote `json:"note"`
	Urgency     domain.FinalVerdict `json:"urgency"`
	WordCount   int                 `json:"word_count"`
	DurationMS  int64               `json:"duration_ms"`
	CompletedAt time.Time           `json:"completed_at"`
}

func newCallView(record domain.CallRecord) callView {
	return callView{
		SessionID:   record.SessionID,
		Locale:      record.Locale,
		Transcript:  record.Transcript,
		Note:        record.Note,
		Urgency:     record.Verdict,
		WordCount:   record.WordCount,
		DurationMS:  record.Duration.Milliseconds(),
		CompletedAt: record.CompletedAt,
	}
}

// classify runs the hybrid classifier outside the streaming path.
func (s *Server) classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "transcript is empty"})
		return
	}

	locale := s.deps.DefaultLocale
	if strings.TrimSpace(req.Locale) != "" {
		parsed, err := domain.ParseLocale(req.Locale)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		locale = parsed
	}

	ctx := c.Request.Context()
	note := domain.UnavailableNote()
	switch {
	case req.Note != nil:
		note = *req.Note
	case s.deps.Notes != nil:
		generated, err := s.deps.Notes.GenerateNote(ctx, req.Transcript, locale)
		if err != nil {
			s.logger.Warn("note generation failed, using default note", "error", err)
		} else {
			note = generated
		}
	}

	verdict := s.deps.Classifier.Classify(ctx, req.Transcript, note, locale)
	c.JSON(http.StatusOK, classifyResponse{Locale: locale, Note: note, Urgency: verdict})
}

func (s *Server) listCalls(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "call persistence is disabled"})
		return
	}

	limit := defaultCallsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxCallsLimit)
	}

	records, err := s.deps.History.RecentCalls(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list calls failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to list calls"})
		return
	}
	views := make([]callView, 0, len(records))
	for _, record := range records {
		views = append(views, newCallView(record))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) getCall(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "call persistence is disabled"})
		return
	}

	id := c.Param("id")
	record, err := s.deps.History.GetCall(c.Request.Context(), id)
	if errors.Is(err, store.ErrCallNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "call " + id + " not found"})
		return
	}
	if err != nil {
		s.logger.Error("get call failed", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load call"})
		return
	}
	c.JSON(http.StatusOK, newCallView(record))
}
