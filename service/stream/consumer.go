// Package stream maintains the push-event subscription of an open
// conversation: one websocket per conversation, decoded into typed events and
// delivered on a channel the session event loop reads. Reconnect policy
// (exponential backoff with jitter) lives here, below the session.
package stream

import (
	"context"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"CareChat/logger"
	"CareChat/model"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type Config struct {
	BaseURL     string // ws:// or wss:// gateway root
	Token       string
	DialTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	ReadLimit   int64
	PingEvery   time.Duration
	PongWait    time.Duration
	Buffer      int // event channel capacity
}

func (c *Config) norm() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 15 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20 // 1MB
	}
	if c.PingEvery <= 0 {
		c.PingEvery = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
}

type liveConn struct {
	mu   sync.Mutex // serializes WriteMessage calls
	conn *websocket.Conn
}

func (l *liveConn) writeJSON(payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(websocket.TextMessage, payload)
}

// Consumer dials and supervises one websocket per subscribed conversation.
type Consumer struct {
	cfg    Config
	dialer *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*liveConn
}

func NewConsumer(cfg Config) *Consumer {
	cfg.norm()
	return &Consumer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		conns:  make(map[string]*liveConn),
	}
}

// Subscribe opens the push-event stream for a conversation. The returned
// channel carries the typed events plus local ConnectionChanged transitions,
// and closes when ctx is cancelled.
func (c *Consumer) Subscribe(ctx context.Context, conversationID string) (<-chan model.Event, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id missing")
	}
	events := make(chan model.Event, c.cfg.Buffer)
	go c.run(ctx, conversationID, events)
	return events, nil
}

func (c *Consumer) run(ctx context.Context, convID string, events chan<- model.Event) {
	defer close(events)
	backoff := c.cfg.MinBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		emit(ctx, events, model.ConnectionChanged{State: model.Connecting})

		conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(convID), c.header())
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			emit(ctx, events, model.ConnectionChanged{State: model.Disconnected})
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(backoff)):
			}
			if backoff *= 2; backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}

		backoff = c.cfg.MinBackoff
		c.bind(convID, conn)
		emit(ctx, events, model.ConnectionChanged{State: model.Connected})
		c.readLoop(ctx, convID, conn, events)
		c.unbind(convID)
		_ = conn.Close()
		emit(ctx, events, model.ConnectionChanged{State: model.Disconnected})
	}
}

func (c *Consumer) readLoop(ctx context.Context, convID string, conn *websocket.Conn, events chan<- model.Event) {
	conn.SetReadLimit(c.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(c.cfg.PingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close() // unblocks ReadMessage
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("[stream] read err conv=%s err=%v", convID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ev, err := model.DecodeEvent(raw)
		if err != nil {
			// Bad or unknown frames are skipped, never fatal to the stream.
			if !errors.Is(err, model.ErrUnknownEvent) {
				logger.Debugf("[stream] drop frame conv=%s err=%v", convID, err)
			}
			continue
		}
		emit(ctx, events, ev)
	}
}

// SendTyping pushes the outbound typing signal over the live conversation
// socket. The gateway stamps the sender identity from the auth token.
func (c *Consumer) SendTyping(conversationID string, typing bool) error {
	c.mu.Lock()
	lc := c.conns[conversationID]
	c.mu.Unlock()
	if lc == nil {
		return errors.Errorf("no live stream for conversation %s", conversationID)
	}
	var ev model.Event
	if typing {
		ev = model.TypingStart{}
	} else {
		ev = model.TypingStop{}
	}
	payload, err := model.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return errors.Wrap(lc.writeJSON(payload), "send typing")
}

func (c *Consumer) bind(convID string, conn *websocket.Conn) {
	c.mu.Lock()
	c.conns[convID] = &liveConn{conn: conn}
	c.mu.Unlock()
}

func (c *Consumer) unbind(convID string) {
	c.mu.Lock()
	delete(c.conns, convID)
	c.mu.Unlock()
}

func (c *Consumer) wsURL(convID string) string {
	return c.cfg.BaseURL + "/ws?conversation=" + url.QueryEscape(convID)
}

func (c *Consumer) header() http.Header {
	h := http.Header{}
	if c.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return h
}

func emit(ctx context.Context, events chan<- model.Event, ev model.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// jitter spreads reconnect attempts so a gateway restart does not see a
// synchronized thundering herd.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
