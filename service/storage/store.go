// Package storage backs the reference gateway. Conversations and message
// history are ephemeral operational state, not a persistence schema: the
// memory store serves single-node and test runs, the Redis store lets several
// gateway nodes share one view.
package storage

import (
	"context"

	"CareChat/model"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// Store is the gateway's view of conversation state. AddReaction reports
// false when the user already reacted with that emoji, which the HTTP layer
// turns into the "Already reacted" answer clients recover from.
type Store interface {
	Conversation(ctx context.Context, id string) (*model.Conversation, error)
	SaveConversation(ctx context.Context, conv *model.Conversation) error
	RemoveParticipant(ctx context.Context, convID, userID string) error

	Messages(ctx context.Context, convID string, limit int) ([]model.Message, error)
	Message(ctx context.Context, convID, msgID string) (*model.Message, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	UpdateMessage(ctx context.Context, msg *model.Message) error

	AddReaction(ctx context.Context, convID, msgID, emoji string, r model.Reactor) (bool, error)
	RemoveReaction(ctx context.Context, convID, msgID, emoji, userID string) (bool, error)
}
