package session

import (
	"CareChat/model"
)

// Ledger tracks which users reacted with which emoji per message. Two layers
// are merged on read: a snapshot seeded once per message from persisted
// metadata, and a live local layer mutated by optimistic updates and stream
// events. On conflict the local layer wins per (message, emoji) key.
//
// The ledger owns no I/O; it is plain in-memory state driven by the session.
type Ledger struct {
	local    map[string]map[string][]model.Reactor
	snapshot map[string]model.ReactionSnapshot
	seeded   map[string]struct{}
}

func NewLedger() *Ledger {
	l := &Ledger{}
	l.Reset()
	return l
}

// Reset drops everything, including the seed tracking set. Called on
// conversation switch so no state bleeds between conversations.
func (l *Ledger) Reset() {
	l.local = make(map[string]map[string][]model.Reactor)
	l.snapshot = make(map[string]model.ReactionSnapshot)
	l.seeded = make(map[string]struct{})
}

// Seed installs the persisted reaction snapshot for a message. It runs at
// most once per message id; later calls are no-ops so a re-delivered snapshot
// can never clobber local mutations.
func (l *Ledger) Seed(messageID string, snap model.ReactionSnapshot) {
	if messageID == "" {
		return
	}
	if _, done := l.seeded[messageID]; done {
		return
	}
	l.seeded[messageID] = struct{}{}
	if len(snap) > 0 {
		l.snapshot[messageID] = snap.Clone()
	}
}

// Seeded reports whether the message's snapshot was already installed.
func (l *Ledger) Seeded(messageID string) bool {
	_, ok := l.seeded[messageID]
	return ok
}

// touch returns the mutable local set for (messageID, emoji), copying the
// snapshot set on first touch so untouched snapshot users survive a local
// mutation of the same key.
func (l *Ledger) touch(messageID, emoji string) []model.Reactor {
	byEmoji, ok := l.local[messageID]
	if !ok {
		byEmoji = make(map[string][]model.Reactor)
		l.local[messageID] = byEmoji
	}
	if set, ok := byEmoji[emoji]; ok {
		return set
	}
	set := append([]model.Reactor(nil), l.snapshot[messageID][emoji]...)
	byEmoji[emoji] = set
	return set
}

// Add inserts the reactor into the set for (messageID, emoji). Adding an
// already-present user is a no-op.
func (l *Ledger) Add(messageID, emoji string, r model.Reactor) {
	set := l.touch(messageID, emoji)
	for _, have := range set {
		if have.UserID == r.UserID {
			return
		}
	}
	l.local[messageID][emoji] = append(set, r)
}

// Remove deletes the user from the set for (messageID, emoji). Removing an
// absent user is a no-op. An emptied set is kept as an explicit tombstone
// only while a snapshot entry exists for the same key, so the snapshot can
// not resurface the removed reaction on read.
func (l *Ledger) Remove(messageID, emoji, userID string) {
	set := l.touch(messageID, emoji)
	out := set[:0]
	for _, have := range set {
		if have.UserID != userID {
			out = append(out, have)
		}
	}
	if len(out) > 0 {
		l.local[messageID][emoji] = out
		return
	}
	if _, shadowed := l.snapshot[messageID][emoji]; shadowed {
		l.local[messageID][emoji] = []model.Reactor{}
	} else {
		delete(l.local[messageID], emoji)
		if len(l.local[messageID]) == 0 {
			delete(l.local, messageID)
		}
	}
}

// Has reports whether the user currently reacts with emoji on the merged
// view. This is the toggle-inference input.
func (l *Ledger) Has(messageID, emoji, userID string) bool {
	for _, r := range l.setFor(messageID, emoji) {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func (l *Ledger) setFor(messageID, emoji string) []model.Reactor {
	if byEmoji, ok := l.local[messageID]; ok {
		if set, ok := byEmoji[emoji]; ok {
			return set
		}
	}
	return l.snapshot[messageID][emoji]
}

// Reactions returns the merged emoji -> reactors view for one message.
// Local entries win per emoji key; emptied keys are omitted so the UI never
// renders an empty reaction pill. The returned slices are copies.
func (l *Ledger) Reactions(messageID string) map[string][]model.Reactor {
	out := make(map[string][]model.Reactor)
	for emoji, set := range l.snapshot[messageID] {
		if _, overridden := l.local[messageID][emoji]; overridden {
			continue
		}
		if len(set) > 0 {
			out[emoji] = append([]model.Reactor(nil), set...)
		}
	}
	for emoji, set := range l.local[messageID] {
		if len(set) > 0 {
			out[emoji] = append([]model.Reactor(nil), set...)
		}
	}
	return out
}
