package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageCreated(t *testing.T) {
	raw := []byte(`{"type":"message.created","data":{"message":{"id":"m1","conversationId":"c1","senderId":"u1","content":"hi","createdAt":1700000000000,"updatedAt":1700000000000}}}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	created, ok := ev.(MessageCreated)
	require.True(t, ok)
	assert.Equal(t, "m1", created.Message.ID)
	assert.Equal(t, "hi", created.Message.Content)
}

func TestDecodeReactionAddedFlattensReactor(t *testing.T) {
	raw := []byte(`{"type":"reaction.added","data":{"messageId":"m1","emoji":"👍","userId":"u2","userName":"Bob"}}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	added, ok := ev.(ReactionAdded)
	require.True(t, ok)
	assert.Equal(t, "m1", added.MessageID)
	assert.Equal(t, "👍", added.Emoji)
	assert.Equal(t, "u2", added.UserID)
	assert.Equal(t, "Bob", added.UserName)
}

func TestDecodeUnknownTypeIsSkippable(t *testing.T) {
	raw := []byte(`{"type":"presence.changed","data":{}}`)

	_, err := DecodeEvent(raw)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	events := []Event{
		MessageUpdated{Message: Message{ID: "m1", Content: "edited", Edited: true}},
		MessageDeleted{MessageID: "m1", Ts: 1700000000000},
		ReactionRemoved{MessageID: "m1", Emoji: "❤️", Reactor: Reactor{UserID: "u1"}},
		TypingStart{UserID: "u2", UserName: "Bob"},
		TypingStop{UserID: "u2"},
	}
	for _, in := range events {
		raw, err := EncodeEvent(in)
		require.NoError(t, err)
		out, err := DecodeEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncodeConnectionChangedHasNoWireForm(t *testing.T) {
	_, err := EncodeEvent(ConnectionChanged{State: Connected})
	assert.Error(t, err)
}

func TestTempIDAndTombstone(t *testing.T) {
	m := Message{ID: "temp-1700000000000", Content: "draft"}
	assert.True(t, m.IsTemp())

	m.ID = "srv-1"
	assert.False(t, m.IsTemp())

	m.MarkDeleted(1700000000500)
	assert.True(t, m.Deleted)
	assert.Equal(t, DeletedPlaceholder, m.Content)
	assert.Equal(t, int64(1700000000500), m.DeletedAt)
	assert.Equal(t, int64(1700000000500), m.UpdatedAt)
}

func TestReactionSnapshotCloneIsDeep(t *testing.T) {
	snap := ReactionSnapshot{"👍": {{UserID: "u1"}}}
	clone := snap.Clone()
	clone["👍"][0].UserID = "mangled"
	assert.Equal(t, "u1", snap["👍"][0].UserID)
}
