package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"calltriage/internal/domain"
)

const maxMessageBytes = 16 << 20

const (
	actionStart = "start"
	actionAudio = "audio"
	actionEnd   = "end"
	actionPing  = "ping"
)

// clientMessage is one inbound protocol frame. Language is accepted as an
// alias of Locale.
type clientMessage struct {
	Action   string `json:"action"`
	Locale   string `json:"locale,omitempty"`
	Language string `json:"language,omitempty"`
	Data     string `json:"data,omitempty"`
}

type errorFrame struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) realtimeCall(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	s.track(conn)
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	ctx := c.Request.Context()
	session := s.deps.NewSession()
	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("realtime connection opened")

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if isClosed(err) {
				logger.Info("realtime connection closed")
			} else {
				logger.Warn("realtime read failed", "error", err)
			}
			if err := session.Disconnect(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("finalize on disconnect failed", "error", err)
			}
			return
		}

		reply, closeAfter := s.handle(ctx, session, msg, logger)
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn("realtime write failed", "error", err)
			if err := session.Disconnect(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("finalize on disconnect failed", "error", err)
			}
			return
		}
		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"))
			return
		}
	}
}

// handle executes one protocol action. It reports whether the connection
// should close after the reply is written.
func (s *Server) handle(ctx context.Context, session CallSession, msg clientMessage, logger *slog.Logger) (any, bool) {
	switch strings.ToLower(strings.TrimSpace(msg.Action)) {
	case actionStart:
		locale, err := s.resolveLocale(msg)
		if err != nil {
			return protocolError(err.Error()), false
		}
		result, err := session.Start(ctx, locale)
		if err != nil {
			logger.Warn("start rejected", "error", err)
			return protocolError(err.Error()), false
		}
		return result, false

	case actionAudio:
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return protocolError(fmt.Sprintf("audio data is not valid base64: %v", err)), false
		}
		ack, err := session.Submit(data)
		if err != nil {
			return protocolError(err.Error()), false
		}
		return ack, false

	case actionEnd:
		result, err := session.End(ctx)
		if err != nil {
			logger.Warn("end failed", "error", err)
			return errorFrame{Status: "error", Error: err.Error()}, false
		}
		return result, true

	case actionPing:
		return gin.H{"status": "pong"}, false

	default:
		return protocolError(fmt.Sprintf("Unknown action: %s", msg.Action)), false
	}
}

func (s *Server) resolveLocale(msg clientMessage) (domain.Locale, error) {
	value := msg.Locale
	if strings.TrimSpace(value) == "" {
		value = msg.Language
	}
	if strings.TrimSpace(value) == "" {
		return s.deps.DefaultLocale, nil
	}
	return domain.ParseLocale(value)
}

func protocolError(message string) errorFrame {
	return errorFrame{Status: "error", Message: message}
}

func isClosed(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
