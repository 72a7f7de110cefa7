package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"calltriage/internal/domain"
	"calltriage/internal/ports"
)

// CallSession is the per-connection session surface driven by the realtime
// protocol. *usecase.SessionController satisfies it.
type CallSession interface {
	Start(ctx context.Context, locale domain.Locale) (domain.StartResult, error)
	Submit(data []byte) (domain.Ack, error)
	End(ctx context.Context) (domain.CallResult, error)
	Disconnect(ctx context.Context) error
}

// CallHistory reads persisted calls.
type CallHistory interface {
	GetCall(ctx context.Context, sessionID string) (domain.CallRecord, error)
	RecentCalls(ctx context.Context, limit int) ([]domain.CallRecord, error)
}

// Dependencies are the collaborators the HTTP surface needs. History may be
// nil when persistence is disabled.
type Dependencies struct {
	NewSession    func() CallSession
	Classifier    ports.UrgencyClassifier
	Notes         ports.NoteGenerator
	History       CallHistory
	DefaultLocale domain.Locale
	Logger        *slog.Logger
}

// Server serves the realtime call protocol and the REST endpoints.
type Server struct {
	deps     Dependencies
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   *gin.Engine

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	live  sync.WaitGroup
}

func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DefaultLocale == "" {
		deps.DefaultLocale = domain.LocaleEnglish
	}

	s := &Server{
		deps:   deps,
		logger: deps.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.GET("/healthz", s.healthz)
	router.GET("/ws/realtime-call", s.realtimeCall)

	api := router.Group("/api")
	{
		api.POST("/classify", s.classify)
		api.GET("/calls", s.listCalls)
		api.GET("/calls/:id", s.getCall)
	}
	s.router = router
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// CloseConnections closes every open realtime connection. Each connection's
// read loop then finalizes its live session as a disconnect.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}
}

// Drain closes every realtime connection and waits until their sessions are
// finalized or ctx ends.
func (s *Server) Drain(ctx context.Context) error {
	s.CloseConnections()

	done := make(chan struct{})
	go func() {
		s.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.live.Add(1)
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.live.Done()
	s.mu.Unlock()
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(started),
		)
	}
}
