package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CareChat/model"
)

func seedConv(t *testing.T, m *Memory) {
	t.Helper()
	require.NoError(t, m.SaveConversation(context.Background(), &model.Conversation{
		ID:    "c1",
		Title: "Care Team",
		Participants: []model.Participant{
			{UserID: "u1", UserName: "Alice", CanWrite: true},
			{UserID: "u2", UserName: "Bob", CanWrite: true},
		},
	}))
}

func TestMemoryConversationRoundTrip(t *testing.T) {
	m := NewMemory()
	seedConv(t, m)

	conv, err := m.Conversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Care Team", conv.Title)
	require.Len(t, conv.Participants, 2)

	conv.Participants[0].UserName = "mangled"
	again, err := m.Conversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Participants[0].UserName)
}

func TestMemoryConversationNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.Conversation(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRemoveParticipant(t *testing.T) {
	m := NewMemory()
	seedConv(t, m)

	require.NoError(t, m.RemoveParticipant(context.Background(), "c1", "u2"))

	conv, err := m.Conversation(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, conv.Participants, 1)
	assert.Equal(t, "u1", conv.Participants[0].UserID)
}

func TestMemoryMessagesOrderedWithLimit(t *testing.T) {
	m := NewMemory()
	seedConv(t, m)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, m.AppendMessage(ctx, &model.Message{ID: id, ConversationID: "c1", Content: id}))
	}

	msgs, err := m.Messages(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID, "limit keeps the newest tail")
	assert.Equal(t, "m3", msgs[1].ID)

	all, err := m.Messages(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryUpdateMessage(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.AppendMessage(ctx, &model.Message{ID: "m1", ConversationID: "c1", Content: "v1"}))

	require.NoError(t, m.UpdateMessage(ctx, &model.Message{ID: "m1", ConversationID: "c1", Content: "v2", Edited: true}))

	got, err := m.Message(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.True(t, got.Edited)

	err = m.UpdateMessage(ctx, &model.Message{ID: "ghost", ConversationID: "c1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReactionAddIsDuplicateAware(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.AppendMessage(ctx, &model.Message{ID: "m1", ConversationID: "c1"}))
	r := model.Reactor{UserID: "u1", UserName: "Alice"}

	added, err := m.AddReaction(ctx, "c1", "m1", "👍", r)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = m.AddReaction(ctx, "c1", "m1", "👍", r)
	require.NoError(t, err)
	assert.False(t, added, "second add of same user reports duplicate")

	msg, err := m.Message(ctx, "c1", "m1")
	require.NoError(t, err)
	require.Len(t, msg.Metadata.Reactions["👍"], 1)
}

func TestMemoryReactionRemove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.AppendMessage(ctx, &model.Message{ID: "m1", ConversationID: "c1"}))
	_, err := m.AddReaction(ctx, "c1", "m1", "👍", model.Reactor{UserID: "u1"})
	require.NoError(t, err)

	removed, err := m.RemoveReaction(ctx, "c1", "m1", "👍", "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.RemoveReaction(ctx, "c1", "m1", "👍", "u1")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent reaction is a no-op")

	msg, err := m.Message(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.Empty(t, msg.Metadata.Reactions["👍"])
}
