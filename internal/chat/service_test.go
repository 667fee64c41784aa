package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/chathub/internal/db"
	"github.com/wuwenbin0122/chathub/internal/models"
)

type fakeStore struct {
	conversations map[string]*models.Conversation
	appendErr     error
	setTitleErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: make(map[string]*models.Conversation)}
}

func (f *fakeStore) Create(ctx context.Context, conv models.Conversation) error {
	if _, exists := f.conversations[conv.ID]; exists {
		return db.ErrDuplicateID
	}
	stored := conv
	f.conversations[conv.ID] = &stored
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, id string, message models.ChatMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	conv, ok := f.conversations[id]
	if !ok {
		return db.ErrNotFound
	}
	conv.Messages = append(conv.Messages, message)
	return nil
}

func (f *fakeStore) SetTitle(ctx context.Context, id, title string) error {
	if f.setTitleErr != nil {
		return f.setTitleErr
	}
	conv, ok := f.conversations[id]
	if !ok {
		return db.ErrNotFound
	}
	conv.Title = title
	return nil
}

type fakeCompleter struct {
	replies  map[string]string // keyed by session id prefix match
	err      error
	titleErr error
	calls    []completerCall
}

type completerCall struct {
	sessionID    string
	systemPrompt string
	userText     string
}

func (f *fakeCompleter) Complete(ctx context.Context, sessionID, systemPrompt, userText string) (string, error) {
	f.calls = append(f.calls, completerCall{sessionID, systemPrompt, userText})
	if strings.HasPrefix(sessionID, "title_") {
		if f.titleErr != nil {
			return "", f.titleErr
		}
		if reply, ok := f.replies["title"]; ok {
			return reply, nil
		}
		return "Generated Title", nil
	}
	if f.err != nil {
		return "", f.err
	}
	if reply, ok := f.replies["chat"]; ok {
		return reply, nil
	}
	return "assistant reply", nil
}

func newTestService(store *fakeStore, completer *fakeCompleter) *Service {
	return NewService(store, completer, nil, zap.NewNop().Sugar())
}

func TestSendMessageNewConversation(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	svc := newTestService(store, completer)

	result, err := svc.SendMessage(context.Background(), NewConversation{Message: "Hello"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if result.ConversationID == "" {
		t.Fatalf("expected a new conversation id")
	}
	if result.UserMessage.Role != models.RoleUser || result.UserMessage.Content != "Hello" {
		t.Fatalf("unexpected user message: %+v", result.UserMessage)
	}
	if result.AssistantMessage.Role != models.RoleAssistant || result.AssistantMessage.Content == "" {
		t.Fatalf("unexpected assistant message: %+v", result.AssistantMessage)
	}

	conv := store.conversations[result.ConversationID]
	if conv == nil {
		t.Fatalf("conversation not persisted")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != models.RoleUser || conv.Messages[1].Role != models.RoleAssistant {
		t.Fatalf("expected user then assistant ordering, got %s then %s", conv.Messages[0].Role, conv.Messages[1].Role)
	}
	if conv.Title != "Generated Title" {
		t.Fatalf("expected generated title, got %q", conv.Title)
	}
}

func TestSendMessageTitleSessionIsDistinct(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	svc := newTestService(store, completer)

	result, err := svc.SendMessage(context.Background(), NewConversation{Message: "Hello"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if len(completer.calls) != 2 {
		t.Fatalf("expected reply and title calls, got %d", len(completer.calls))
	}
	if completer.calls[0].sessionID != result.ConversationID {
		t.Fatalf("reply call not scoped to conversation session: %q", completer.calls[0].sessionID)
	}
	if completer.calls[1].sessionID != "title_"+result.ConversationID {
		t.Fatalf("title call must use a derived session, got %q", completer.calls[1].sessionID)
	}
}

func TestSendMessageDefaultTitleTruncation(t *testing.T) {
	store := newFakeStore()
	// The generated title exceeds the bound, so the default must survive.
	completer := &fakeCompleter{replies: map[string]string{"title": strings.Repeat("t", 80)}}
	svc := newTestService(store, completer)

	message := strings.Repeat("A", 60)
	result, err := svc.SendMessage(context.Background(), NewConversation{Message: message})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	expected := strings.Repeat("A", 50) + "..."
	if title := store.conversations[result.ConversationID].Title; title != expected {
		t.Fatalf("expected default title %q, got %q", expected, title)
	}
}

func TestSendMessageExplicitTitleWins(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{titleErr: errors.New("title provider down")}
	svc := newTestService(store, completer)

	result, err := svc.SendMessage(context.Background(), NewConversation{Message: "Hello", Title: "My Chat"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if title := store.conversations[result.ConversationID].Title; title != "My Chat" {
		t.Fatalf("expected explicit title kept, got %q", title)
	}
}

func TestSendMessageTitleFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{titleErr: errors.New("title provider down")}
	svc := newTestService(store, completer)

	result, err := svc.SendMessage(context.Background(), NewConversation{Message: "Hello"})
	if err != nil {
		t.Fatalf("title failure must not fail the request: %v", err)
	}

	if title := store.conversations[result.ConversationID].Title; title != "Hello" {
		t.Fatalf("expected default title retained, got %q", title)
	}
}

func TestSendMessageContinueConversation(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	svc := newTestService(store, completer)

	first, err := svc.SendMessage(context.Background(), NewConversation{Message: "Hello"})
	if err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	second, err := svc.SendMessage(context.Background(), ContinueConversation{ID: first.ConversationID, Message: "And another thing"})
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("continue must not change the conversation id")
	}

	conv := store.conversations[first.ConversationID]
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 4 messages after two sends, got %d", len(conv.Messages))
	}
	if conv.Messages[2].Content != "And another thing" {
		t.Fatalf("prior messages were not preserved: %+v", conv.Messages)
	}
}

func TestSendMessageContinueUnknownConversation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeCompleter{})

	_, err := svc.SendMessage(context.Background(), ContinueConversation{ID: "missing", Message: "hi"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendMessageUpstreamFailureLeavesUserMessage(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{err: errors.New("provider timeout")}
	svc := newTestService(store, completer)

	_, err := svc.SendMessage(context.Background(), NewConversation{Message: "Hello"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	// The user message stays persisted so the caller can re-send.
	if len(store.conversations) != 1 {
		t.Fatalf("expected the conversation to remain, got %d", len(store.conversations))
	}
	for _, conv := range store.conversations {
		if len(conv.Messages) != 1 || conv.Messages[0].Role != models.RoleUser {
			t.Fatalf("expected single stranded user message, got %+v", conv.Messages)
		}
	}
}

func TestSendMessageEmptyMessageRejected(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeCompleter{})

	if _, err := svc.SendMessage(context.Background(), NewConversation{Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), ContinueConversation{ID: "x", Message: ""}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}
