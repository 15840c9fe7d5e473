package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// signalLog records start/stop callbacks in order.
type signalLog struct {
	mu  sync.Mutex
	log []string
}

func (s *signalLog) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, "start")
}

func (s *signalLog) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, "stop")
}

func (s *signalLog) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func TestNotifierStartOnceWhileTyping(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(50*time.Millisecond, sig.start, sig.stop)

	n.InputChanged("h")
	n.InputChanged("he")
	n.InputChanged("hel")

	assert.Equal(t, []string{"start"}, sig.snapshot())
	n.Quiet()
}

func TestNotifierStopAfterIdle(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(30*time.Millisecond, sig.start, sig.stop)

	n.InputChanged("hello")
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, []string{"start", "stop"}, sig.snapshot())
}

func TestNotifierKeystrokeReArmsTimer(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(60*time.Millisecond, sig.start, sig.stop)

	n.InputChanged("a")
	time.Sleep(35 * time.Millisecond)
	n.InputChanged("ab") // inside the idle window, pushes expiry out
	time.Sleep(35 * time.Millisecond)

	assert.Equal(t, []string{"start"}, sig.snapshot(), "stop must not fire while keystrokes keep coming")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"start", "stop"}, sig.snapshot())
}

func TestNotifierEmptyInputStopsImmediately(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(time.Hour, sig.start, sig.stop)

	n.InputChanged("draft")
	n.InputChanged("")

	assert.Equal(t, []string{"start", "stop"}, sig.snapshot())
}

func TestNotifierQuietWithoutStartIsSilent(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(time.Hour, sig.start, sig.stop)

	n.Quiet()
	assert.Empty(t, sig.snapshot())
}

func TestNotifierNoDuplicateStop(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(20*time.Millisecond, sig.start, sig.stop)

	n.InputChanged("x")
	time.Sleep(60 * time.Millisecond)
	n.Quiet() // idle timer already stopped the session

	assert.Equal(t, []string{"start", "stop"}, sig.snapshot())
}

func TestNotifierRestartsAfterStop(t *testing.T) {
	var sig signalLog
	n := NewTypingNotifier(20*time.Millisecond, sig.start, sig.stop)

	n.InputChanged("x")
	time.Sleep(60 * time.Millisecond)
	n.InputChanged("y")

	assert.Equal(t, []string{"start", "stop", "start"}, sig.snapshot())
	n.Quiet()
}
