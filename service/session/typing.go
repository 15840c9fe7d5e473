package session

import (
	"sync"
	"time"
)

// Indicator is one remote participant currently typing.
type Indicator struct {
	UserID   string
	UserName string
	LastSeen time.Time
}

// TypingNotifier debounces outbound typing signals for one input session.
// A keystroke that makes the input non-empty sends typing-start and (re)arms
// a single idle timer; timer expiry or an emptied input sends typing-stop.
// Re-arming cancels the prior timer, so exactly one timer is ever live and
// no duplicate stop signal fires.
type TypingNotifier struct {
	mu     sync.Mutex
	idle   time.Duration
	active bool
	timer  *time.Timer
	start  func()
	stop   func()
}

func NewTypingNotifier(idle time.Duration, start, stop func()) *TypingNotifier {
	if idle <= 0 {
		idle = 3 * time.Second
	}
	if start == nil {
		start = func() {}
	}
	if stop == nil {
		stop = func() {}
	}
	return &TypingNotifier{idle: idle, start: start, stop: stop}
}

// InputChanged reports the input content after a keystroke.
func (n *TypingNotifier) InputChanged(content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if content == "" {
		n.quietLocked()
		return
	}
	if !n.active {
		n.active = true
		n.start()
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.idle, n.expire)
}

func (n *TypingNotifier) expire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quietLocked()
}

// Quiet ends the input session immediately, emitting typing-stop if a start
// was outstanding. Used on send and on session close.
func (n *TypingNotifier) Quiet() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quietLocked()
}

func (n *TypingNotifier) quietLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.active {
		n.active = false
		n.stop()
	}
}
