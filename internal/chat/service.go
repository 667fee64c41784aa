package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/chathub/internal/db"
	"github.com/wuwenbin0122/chathub/internal/lock"
	"github.com/wuwenbin0122/chathub/internal/models"
)

var (
	ErrNotFound     = errors.New("chat: conversation not found")
	ErrEmptyMessage = errors.New("chat: message is required")
	ErrUpstream     = errors.New("chat: llm provider failure")
)

const (
	assistantSystemPrompt = "You are a helpful AI assistant. Provide clear, accurate, and helpful responses. Format your responses using markdown when appropriate."
	titleSystemPrompt     = "Generate a short, descriptive title (max 50 characters) for this conversation based on the user's first message. Return only the title, nothing else."
)

// Store is the subset of conversation persistence the orchestrator needs.
type Store interface {
	Create(ctx context.Context, conv models.Conversation) error
	Get(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id string, message models.ChatMessage) error
	SetTitle(ctx context.Context, id, title string) error
}

// Completer is the external LLM collaborator: given a session id, a system
// instruction and the user text, it returns generated text or fails.
type Completer interface {
	Complete(ctx context.Context, sessionID, systemPrompt, userText string) (string, error)
}

// Intent is the caller's request, made explicit so the create and continue
// paths are separate code paths rather than a branch on an optional id.
type Intent interface {
	isIntent()
}

// NewConversation starts a fresh conversation from its first message.
type NewConversation struct {
	Message string
	Title   string
}

// ContinueConversation appends to an existing conversation.
type ContinueConversation struct {
	ID      string
	Message string
}

func (NewConversation) isIntent()      {}
func (ContinueConversation) isIntent() {}

// SendResult is the outcome of one send: the (possibly new) conversation id
// plus both persisted messages.
type SendResult struct {
	ConversationID   string
	UserMessage      models.ChatMessage
	AssistantMessage models.ChatMessage
}

// Service coordinates the store and the LLM provider to fulfil a single
// send-message request.
type Service struct {
	store  Store
	llm    Completer
	locker lock.ConversationLocker
	logger *zap.SugaredLogger
}

func NewService(store Store, llm Completer, locker lock.ConversationLocker, logger *zap.SugaredLogger) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{store: store, llm: llm, locker: locker, logger: logger}
}

// SendMessage persists the user message, obtains the assistant reply and
// persists it too. If the reply generation fails after the user message was
// stored, the user message stays in place and the caller may re-send.
func (s *Service) SendMessage(ctx context.Context, intent Intent) (*SendResult, error) {
	switch req := intent.(type) {
	case NewConversation:
		return s.sendToNew(ctx, req)
	case ContinueConversation:
		return s.sendToExisting(ctx, req)
	default:
		return nil, fmt.Errorf("chat: unknown intent %T", intent)
	}
}

func (s *Service) sendToNew(ctx context.Context, req NewConversation) (*SendResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	userMessage := models.NewUserMessage(req.Message)

	title := req.Title
	if title == "" {
		title = models.DefaultTitle(req.Message)
	}

	conv := models.NewConversation(title, userMessage)

	release, err := s.locker.Acquire(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.store.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("chat: create conversation: %w", err)
	}

	assistantMessage, err := s.generateReply(ctx, conv.ID, req.Message)
	if err != nil {
		return nil, err
	}

	// Best-effort title upgrade; the default title stands if this fails.
	s.generateTitle(ctx, conv.ID, req.Message)

	return &SendResult{
		ConversationID:   conv.ID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	}, nil
}

func (s *Service) sendToExisting(ctx context.Context, req ContinueConversation) (*SendResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	release, err := s.locker.Acquire(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.store.Get(ctx, req.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chat: fetch conversation: %w", err)
	}

	userMessage := models.NewUserMessage(req.Message)
	if err := s.store.AppendMessage(ctx, req.ID, userMessage); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chat: append user message: %w", err)
	}

	assistantMessage, err := s.generateReply(ctx, req.ID, req.Message)
	if err != nil {
		return nil, err
	}

	return &SendResult{
		ConversationID:   req.ID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	}, nil
}

// generateReply calls the provider scoped to the conversation's session and
// appends the assistant message. The already-stored user message is left in
// place on failure so a re-send can retry.
func (s *Service) generateReply(ctx context.Context, conversationID, userText string) (models.ChatMessage, error) {
	reply, err := s.llm.Complete(ctx, conversationID, assistantSystemPrompt, userText)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	assistantMessage := models.NewAssistantMessage(reply)
	if err := s.store.AppendMessage(ctx, conversationID, assistantMessage); err != nil {
		return models.ChatMessage{}, fmt.Errorf("chat: append assistant message: %w", err)
	}

	return assistantMessage, nil
}

// generateTitle asks the provider for a nicer title under a session distinct
// from the conversation's own, so the exchange never pollutes chat context.
// Any failure is logged and swallowed.
func (s *Service) generateTitle(ctx context.Context, conversationID, firstMessage string) {
	title, err := s.llm.Complete(ctx, "title_"+conversationID, titleSystemPrompt, "User's message: "+firstMessage)
	if err != nil {
		s.logger.Warnf("title generation failed for conversation %s: %v", conversationID, err)
		return
	}

	title = strings.TrimSpace(title)
	if !models.ValidTitle(title) {
		return
	}

	if err := s.store.SetTitle(ctx, conversationID, title); err != nil {
		s.logger.Warnf("saving generated title failed for conversation %s: %v", conversationID, err)
	}
}
