package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles form a closed set; anything else is rejected at the API boundary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Fixed display avatars, one per role.
const (
	UserAvatar      = "https://images.unsplash.com/photo-1633332755192-727a05c4013d?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NTY2NzR8MHwxfHNlYXJjaHwxfHx1c2VyJTIwYXZhdGFyfGVufDB8fHx8MTc1MjMxNjk1N3ww&ixlib=rb-4.1.0&q=85"
	AssistantAvatar = "https://images.unsplash.com/photo-1631882456892-54a30e92fe4f?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NDQ2MzR8MHwxfHNlYXJjaHwyfHxyb2JvdCUyMGF2YXRhcnxlbnwwfHx8fDE3NTIzMTY5NDh8MA&ixlib=rb-4.1.0&q=85"
)

// maxTitleLength bounds both derived and generated conversation titles.
const maxTitleLength = 50

// ChatMessage is a single immutable turn in a conversation. Messages are only
// ever appended; they have no identity outside their parent conversation.
type ChatMessage struct {
	ID        string    `json:"id" bson:"id"`
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Avatar    string    `json:"avatar" bson:"avatar"`
}

// Conversation owns its ordered message sequence. The id is assigned by the
// store at creation and is stable for the conversation's lifetime.
type Conversation struct {
	ID        string        `json:"id" bson:"_id"`
	Title     string        `json:"title" bson:"title"`
	Messages  []ChatMessage `json:"messages" bson:"messages"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

// StatusCheck records a client ping for service monitoring.
type StatusCheck struct {
	ID         string    `json:"id" bson:"_id"`
	ClientName string    `json:"client_name" bson:"client_name"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// NewUserMessage builds a user-role message stamped with the current time and
// the fixed user avatar.
func NewUserMessage(content string) ChatMessage {
	return newMessage(RoleUser, content, UserAvatar)
}

// NewAssistantMessage builds an assistant-role message.
func NewAssistantMessage(content string) ChatMessage {
	return newMessage(RoleAssistant, content, AssistantAvatar)
}

func newMessage(role, content, avatar string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Avatar:    avatar,
	}
}

// NewConversation seeds a conversation with its first message. The id
// generated here is final; clients never supply one.
func NewConversation(title string, first ChatMessage) Conversation {
	now := time.Now().UTC()
	return Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []ChatMessage{first},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewStatusCheck builds a status-check document for the given client.
func NewStatusCheck(clientName string) StatusCheck {
	return StatusCheck{
		ID:         uuid.NewString(),
		ClientName: clientName,
		Timestamp:  time.Now().UTC(),
	}
}

// DefaultTitle derives a conversation title from its first user message:
// the first 50 characters, ellipsis-appended when truncated.
func DefaultTitle(message string) string {
	runes := []rune(message)
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength]) + "..."
	}
	return message
}

// ValidTitle reports whether a generated title may replace the default:
// non-empty after trimming and within the length bound.
func ValidTitle(title string) bool {
	trimmed := strings.TrimSpace(title)
	return trimmed != "" && len([]rune(trimmed)) <= maxTitleLength
}
