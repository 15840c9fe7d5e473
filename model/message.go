package model

import (
	"strconv"
	"strings"
	"time"
)

// TempIDPrefix marks a message that was inserted optimistically and has not
// been confirmed by the server yet.
const TempIDPrefix = "temp-"

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message was deleted"

// Reactor is one user who reacted to a message.
type Reactor struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ReactionSnapshot is the per-message reaction state persisted by the server,
// keyed by emoji. It is authoritative at load time only; anything mutated
// after load lives in the session ledger.
type ReactionSnapshot map[string][]Reactor

// Clone returns a deep copy so the caller can mutate freely.
func (s ReactionSnapshot) Clone() ReactionSnapshot {
	if s == nil {
		return nil
	}
	out := make(ReactionSnapshot, len(s))
	for emoji, reactors := range s {
		out[emoji] = append([]Reactor(nil), reactors...)
	}
	return out
}

// Metadata carries the free-form message extras the runtime understands.
type Metadata struct {
	Reactions ReactionSnapshot `json:"reactions,omitempty"`
}

type Message struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId"`
	SenderID       string   `json:"senderId"`
	SenderName     string   `json:"senderName,omitempty"`
	Content        string   `json:"content"`
	ReplyToID      string   `json:"replyToId,omitempty"`
	Edited         bool     `json:"isEdited,omitempty"`
	EditedAt       int64    `json:"editedAt,omitempty"`
	Deleted        bool     `json:"isDeleted,omitempty"`
	DeletedAt      int64    `json:"deletedAt,omitempty"`
	AttachmentIDs  []string `json:"attachments,omitempty"`
	Metadata       Metadata `json:"metadata,omitempty"`
	CreatedAt      int64    `json:"createdAt"`
	UpdatedAt      int64    `json:"updatedAt"`
}

// IsTemp reports whether the message is an unconfirmed optimistic entry.
func (m *Message) IsTemp() bool { return strings.HasPrefix(m.ID, TempIDPrefix) }

// MarkDeleted applies the soft-delete tombstone in place. Deleted messages
// keep their slot in the conversation list and are never physically removed.
func (m *Message) MarkDeleted(ts int64) {
	m.Deleted = true
	m.Content = DeletedPlaceholder
	m.DeletedAt = ts
	m.UpdatedAt = ts
}

// NewTempID builds the sentinel id for a not-yet-confirmed send.
func NewTempID(now time.Time) string {
	return TempIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}
