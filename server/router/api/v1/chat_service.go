package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/pharmacontrol/server/internal/errors"
	"github.com/hrygo/pharmacontrol/server/service/chat"
)

// ChatRequest is the body of POST /chat. "mensaje" is accepted for older
// clients.
type ChatRequest struct {
	Message   string `json:"message"`
	Mensaje   string `json:"mensaje"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// NewChatResponse is the body returned by POST /nuevo-chat.
type NewChatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Welcome   string `json:"welcome"`
}

// SendMessage runs one conversation turn.
// POST /chat
func (s *APIV1Service) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	message := req.Message
	if message == "" {
		message = req.Mensaje
	}
	token := req.Token
	if token == "" {
		token = bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	}

	reply, err := s.Chat.HandleMessage(ctx, chat.Input{
		Message:   message,
		SessionID: req.SessionID,
		Token:     token,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ChatResponse{Response: reply})
	case apperrors.IsInvalidSession(err):
		return c.JSON(http.StatusOK, ChatResponse{Response: chat.InvalidSessionMsg})
	case apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process message"})
	}
}

// StartChat opens a new session.
// POST /nuevo-chat
func (s *APIV1Service) StartChat(c echo.Context) error {
	sess, err := s.Chat.NewChat(c.Request().Context())
	if err != nil {
		slog.Error("failed to start chat", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to start chat"})
	}

	welcome := ""
	if len(sess.Turns) > 0 {
		welcome = sess.Turns[0].Content
	}
	return c.JSON(http.StatusOK, NewChatResponse{
		Message:   "✅ Nuevo chat iniciado.",
		SessionID: sess.ID,
		Welcome:   welcome,
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
