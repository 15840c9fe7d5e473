package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CareChat/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsFixture runs a websocket endpoint the consumer can dial. Frames queued
// via send go out as soon as a client attaches; inbound frames are recorded.
type wsFixture struct {
	srv *httptest.Server

	mu       sync.Mutex
	outbound [][]byte
	inbound  [][]byte
	attached chan struct{}
	reject   bool
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	f := &wsFixture{attached: make(chan struct{}, 4)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		reject := f.reject
		f.mu.Unlock()
		if reject {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/ws", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("conversation"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.attached <- struct{}{}

		f.mu.Lock()
		queued := f.outbound
		f.outbound = nil
		f.mu.Unlock()
		for _, frame := range queued {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.inbound = append(f.inbound, raw)
			f.mu.Unlock()
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *wsFixture) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *wsFixture) send(t *testing.T, ev model.Event) {
	t.Helper()
	raw, err := model.EncodeEvent(ev)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbound = append(f.outbound, raw)
}

func (f *wsFixture) sendRaw(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbound = append(f.outbound, frame)
}

func collect(t *testing.T, ch <-chan model.Event, n int) []model.Event {
	t.Helper()
	out := make([]model.Event, 0, n)
	deadline := time.After(3 * time.Second)
	for len(out) < n {
		select {
		case ev, okCh := <-ch:
			require.True(t, okCh, "event channel closed early")
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("got %d of %d events", len(out), n)
		}
	}
	return out
}

func TestSubscribeDeliversTypedEvents(t *testing.T) {
	f := newWSFixture(t)
	f.send(t, model.MessageCreated{Message: model.Message{ID: "m1", Content: "hi"}})
	f.send(t, model.ReactionAdded{MessageID: "m1", Emoji: "👍", Reactor: model.Reactor{UserID: "u2"}})

	c := NewConsumer(Config{BaseURL: f.url(), Token: "tok"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "c1")
	require.NoError(t, err)

	// connecting, connected, then the two frames
	got := collect(t, events, 4)
	assert.Equal(t, model.ConnectionChanged{State: model.Connecting}, got[0])
	assert.Equal(t, model.ConnectionChanged{State: model.Connected}, got[1])
	created, ok := got[2].(model.MessageCreated)
	require.True(t, ok)
	assert.Equal(t, "m1", created.Message.ID)
	_, ok = got[3].(model.ReactionAdded)
	assert.True(t, ok)
}

func TestSubscribeSkipsUnknownFrames(t *testing.T) {
	f := newWSFixture(t)
	f.sendRaw([]byte(`{"type":"presence.changed","data":{}}`))
	f.send(t, model.TypingStart{UserID: "u2", UserName: "Bob"})

	c := NewConsumer(Config{BaseURL: f.url()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "c1")
	require.NoError(t, err)

	got := collect(t, events, 3)
	start, ok := got[2].(model.TypingStart)
	require.True(t, ok, "unknown frame skipped, typing frame delivered")
	assert.Equal(t, "u2", start.UserID)
}

func TestSubscribeRetriesAfterDialFailure(t *testing.T) {
	f := newWSFixture(t)
	f.mu.Lock()
	f.reject = true
	f.mu.Unlock()

	c := NewConsumer(Config{
		BaseURL:    f.url(),
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "c1")
	require.NoError(t, err)

	// First attempt fails: connecting then disconnected.
	got := collect(t, events, 2)
	assert.Equal(t, model.ConnectionChanged{State: model.Connecting}, got[0])
	assert.Equal(t, model.ConnectionChanged{State: model.Disconnected}, got[1])

	f.mu.Lock()
	f.reject = false
	f.mu.Unlock()

	// The consumer keeps dialing and eventually lands Connected.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev == (model.ConnectionChanged{State: model.Connected}) {
				return
			}
		case <-deadline:
			t.Fatal("never reconnected")
		}
	}
}

func TestSubscribeClosesChannelOnCancel(t *testing.T) {
	f := newWSFixture(t)
	c := NewConsumer(Config{BaseURL: f.url()})
	ctx, cancel := context.WithCancel(context.Background())

	events, err := c.Subscribe(ctx, "c1")
	require.NoError(t, err)
	collect(t, events, 2) // connecting + connected

	cancel()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, okCh := <-events:
			if !okCh {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed after cancel")
		}
	}
}

func TestSendTypingWritesFrame(t *testing.T) {
	f := newWSFixture(t)
	c := NewConsumer(Config{BaseURL: f.url()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "c1")
	require.NoError(t, err)
	collect(t, events, 2) // wait for the live connection

	require.NoError(t, c.SendTyping("c1", true))
	require.NoError(t, c.SendTyping("c1", false))

	deadline := time.After(3 * time.Second)
	for {
		f.mu.Lock()
		n := len(f.inbound)
		f.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("typing frames never arrived")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	first, err := model.DecodeEvent(f.inbound[0])
	require.NoError(t, err)
	assert.IsType(t, model.TypingStart{}, first)
	second, err := model.DecodeEvent(f.inbound[1])
	require.NoError(t, err)
	assert.IsType(t, model.TypingStop{}, second)
}

func TestSendTypingWithoutStream(t *testing.T) {
	c := NewConsumer(Config{BaseURL: "ws://127.0.0.1:1"})
	assert.Error(t, c.SendTyping("c1", true))
}
