package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "tok-123"})
}

func TestGetConversationBarePayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/conversations/c1", r.URL.Path)
		w.Write([]byte(`{"id":"c1","title":"Care Team","participants":[{"userId":"u1","canWrite":true}]}`))
	})

	conv, err := c.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Care Team", conv.Title)
	require.Len(t, conv.Participants, 1)
	assert.True(t, conv.Participants[0].CanWrite)
}

func TestGetConversationEnvelopedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"id":"c1","title":"Wrapped"}}`))
	})

	conv, err := c.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Wrapped", conv.Title)
}

func TestListMessagesEnvelopedItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"success":true,"data":{"items":[{"id":"m1","content":"a"},{"id":"m2","content":"b"}]}}`))
	})

	msgs, err := c.ListMessages(context.Background(), "c1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestListMessagesBareMessagesField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[{"id":"m1","content":"a"}]}`))
	})

	msgs, err := c.ListMessages(context.Background(), "c1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestListMessagesEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	msgs, err := c.ListMessages(context.Background(), "c1", 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthRequired},
		{http.StatusForbidden, ErrAccessDenied},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.GetConversation(context.Background(), "c1")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestAddReactionAlreadyReacted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"success":false,"error":"Already reacted to this message"}`))
	})

	err := c.AddReaction(context.Background(), "c1", "m1", "👍")
	assert.ErrorIs(t, err, ErrAlreadyReacted)
}

func TestGenericServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := c.GetConversation(context.Background(), "c1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, IsConnectivity(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestConnectivityErrorOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.GetConversation(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, IsConnectivity(err))

	err = c.AddReaction(context.Background(), "c1", "m1", "👍")
	assert.True(t, IsConnectivity(err))
}

func TestCreateMessageBodyAndPathEscaping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req CreateMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Content)
		assert.Equal(t, []string{"f1"}, req.Attachments)
		w.Write([]byte(`{"data":{"id":"srv-1","content":"hello"}}`))
	})

	msg, err := c.CreateMessage(context.Background(), "care team/1", "hello", []string{"f1"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
}

func TestRemoveReactionAndLeave(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.RemoveReaction(context.Background(), "c1", "m1", "👍"))
	require.NoError(t, c.LeaveConversation(context.Background(), "c1", "u1"))
	require.Len(t, paths, 2)
	assert.Contains(t, paths[0], "/conversations/c1/messages/m1/reactions/")
	assert.Equal(t, "/conversations/c1/participants/u1", paths[1])
}
