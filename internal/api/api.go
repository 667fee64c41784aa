package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/chathub/internal/chat"
	"github.com/wuwenbin0122/chathub/internal/db"
	"github.com/wuwenbin0122/chathub/internal/models"
)

// Sender fulfils a send-message request end to end.
type Sender interface {
	SendMessage(ctx context.Context, intent chat.Intent) (*chat.SendResult, error)
}

// ConversationStore is the persistence surface the HTTP layer exposes
// directly (reads, deletes and title updates bypass the orchestrator).
type ConversationStore interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	ListAll(ctx context.Context) ([]models.Conversation, error)
	SetTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

// StatusStore records and lists client status checks.
type StatusStore interface {
	Create(ctx context.Context, check models.StatusCheck) error
	List(ctx context.Context) ([]models.StatusCheck, error)
}

type Handler struct {
	sender Sender
	store  ConversationStore
	status StatusStore
	logger *zap.SugaredLogger
}

func NewHandler(sender Sender, store ConversationStore, status StatusStore, logger *zap.SugaredLogger) *Handler {
	return &Handler{sender: sender, store: store, status: status, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	apiGroup.GET("/", h.handleRoot)
	apiGroup.POST("/status", h.handleCreateStatus)
	apiGroup.GET("/status", h.handleListStatus)

	apiGroup.GET("/conversations", h.handleListConversations)
	apiGroup.GET("/conversations/:id", h.handleGetConversation)
	apiGroup.DELETE("/conversations/:id", h.handleDeleteConversation)
	apiGroup.PUT("/conversations/:id/title", h.handleUpdateTitle)

	apiGroup.POST("/chat/send", h.handleSendMessage)
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
	Title          string `json:"title"`
}

type statusCheckRequest struct {
	ClientName string `json:"client_name" binding:"required"`
}

type updateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
}

func (h *Handler) handleCreateStatus(c *gin.Context) {
	var req statusCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", "request body must include client_name")
		return
	}

	check := models.NewStatusCheck(req.ClientName)
	if err := h.status.Create(c.Request.Context(), check); err != nil {
		h.logger.Errorf("create status check: %v", err)
		writeError(c, http.StatusInternalServerError, "failed to store status check", "the status check could not be stored")
		return
	}

	c.JSON(http.StatusOK, check)
}

func (h *Handler) handleListStatus(c *gin.Context) {
	checks, err := h.status.List(c.Request.Context())
	if err != nil {
		h.logger.Errorf("list status checks: %v", err)
		writeError(c, http.StatusInternalServerError, "failed to list status checks", "status checks could not be loaded")
		return
	}

	c.JSON(http.StatusOK, checks)
}

func (h *Handler) handleListConversations(c *gin.Context) {
	conversations, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Errorf("list conversations: %v", err)
		writeError(c, http.StatusInternalServerError, "failed to list conversations", "conversations could not be loaded")
		return
	}

	c.JSON(http.StatusOK, conversations)
}

func (h *Handler) handleGetConversation(c *gin.Context) {
	conv, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "Conversation not found", "no conversation exists with the requested id")
			return
		}
		h.logger.Errorf("get conversation: %v", err)
		writeError(c, http.StatusInternalServerError, "failed to fetch conversation", "the conversation could not be loaded")
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *Handler) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", "request body must include a message")
		return
	}

	var intent chat.Intent
	if req.ConversationID != "" {
		intent = chat.ContinueConversation{ID: req.ConversationID, Message: req.Message}
	} else {
		intent = chat.NewConversation{Message: req.Message, Title: req.Title}
	}

	result, err := h.sender.SendMessage(c.Request.Context(), intent)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(c, http.StatusBadRequest, "message is required", "message must not be empty")
		case errors.Is(err, chat.ErrNotFound):
			writeError(c, http.StatusNotFound, "Conversation not found", "no conversation exists with the requested id")
		default:
			h.logger.Errorf("send message: %v", err)
			writeError(c, http.StatusInternalServerError, "Error processing message", "the assistant reply could not be generated")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": result.ConversationID,
		"user_message":    result.UserMessage,
		"ai_message":      result.AssistantMessage,
	})
}

func (h *Handler) handleDeleteConversation(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "Conversation not found", "no conversation exists with the requested id")
			return
		}
		h.logger.Errorf("delete conversation: %v", err)
		writeError(c, http.StatusInternalServerError, "failed to delete conversation", "the conversation could not be deleted")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully"})
}

func (h *Handler) handleUpdateTitle(c *gin.Context) {
	var req updateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", "request body must include a title")
		return
	}

	if err := h.store.SetTitle(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "Conversation not found", "no conversation exists with the requested id")
			return
		}
		h.logger.Errorf("update title: %v", err)
		writeError(c, http.StatusInternalServerError, "failed to update title", "the title could not be updated")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Title updated successfully"})
}

// writeError emits the JSON error body. The detail string is composed by the
// handler; raw error chains stay in the logs and never reach the client.
func writeError(c *gin.Context, status int, message, detail string) {
	c.JSON(status, gin.H{
		"error":  message,
		"detail": detail,
	})
}
