package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"console-gw/internal/service"
)

// ChatHandler mantiene dependencias para endpoints de sesiones y mensajes del asistente.
type ChatHandler struct {
	logger        *zap.Logger
	assistantServ *service.AssistantService
}

func NewChatHandler(logger *zap.Logger, assistantServ *service.AssistantService) *ChatHandler {
	return &ChatHandler{
		logger:        logger,
		assistantServ: assistantServ,
	}
}

// CreateSession maneja POST /chat/sessions.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		WorkspaceID string `json:"workspace_id" binding:"required"`
		SolutionID  string `json:"solution_id"`
		Title       string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.assistantServ.CreateSession(c.Request.Context(), claims.UserID, req.WorkspaceID, req.SolutionID, req.Title)
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// ListSessions maneja GET /chat/sessions.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	sessions, err := h.assistantServ.ListSessions(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ListMessages maneja GET /chat/sessions/:id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	messages, err := h.assistantServ.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PostMessage maneja POST /chat/sessions/:id/messages. Corre el turno completo
// y responde con el mensaje final del asistente.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.assistantServ.SendMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages"})
		case errors.Is(err, service.ErrGenerationClosed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation interrupted"})
		default:
			h.logger.Error("post message failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// GetThinking maneja GET /chat/messages/:chatID/thinking. Recuperación
// perezosa de la traza de un mensaje.
func (h *ChatHandler) GetThinking(c *gin.Context) {
	steps, err := h.assistantServ.GetThinking(c.Request.Context(), c.Param("chatID"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "thinking not found"})
			return
		}
		h.logger.Error("get thinking failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get thinking"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thinking": steps})
}
