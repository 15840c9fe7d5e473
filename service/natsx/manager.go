// Package natsx is the gateway's NATS facade. One subject per conversation
// (chat.conv.<id>) carries relayed event frames so websocket clients attached
// to other gateway nodes see the same stream. A nil *Manager is a valid
// single-node deployment: every method no-ops.
package natsx

import (
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *Config) norm() {
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
}

type Handler func(subject string, data []byte)

// Manager owns the connection and the gateway's subscriptions.
type Manager struct {
	nc *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	cfg.norm()
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &Manager{nc: nc}, nil
}

// Publish sends one frame; it is a no-op on a nil manager.
func (m *Manager) Publish(subject string, data []byte) error {
	if m == nil {
		return nil
	}
	return errors.Wrapf(m.nc.Publish(subject, data), "publish %s", subject)
}

// Subscribe attaches a handler to a subject pattern (core mode; relayed
// frames are fire-and-forget, history lives in the store).
func (m *Manager) Subscribe(subject string, h Handler) error {
	if m == nil {
		return nil
	}
	sub, err := m.nc.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Subject, msg.Data)
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", subject)
	}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return nil
}

// Close drains subscriptions and the connection.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	for _, sub := range m.subs {
		_ = sub.Drain()
	}
	m.subs = nil
	m.mu.Unlock()
	return m.nc.Drain()
}
