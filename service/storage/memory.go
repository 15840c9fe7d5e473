package storage

import (
	"context"
	"sync"

	"CareChat/model"
)

// Memory is the single-node store. Reactions live inside the message's
// metadata snapshot, which is exactly the shape clients seed their ledger
// from at load time.
type Memory struct {
	mu       sync.RWMutex
	convs    map[string]*model.Conversation
	order    map[string][]string               // convID -> ordered message ids
	messages map[string]map[string]*model.Message // convID -> msgID -> message
}

func NewMemory() *Memory {
	return &Memory{
		convs:    make(map[string]*model.Conversation),
		order:    make(map[string][]string),
		messages: make(map[string]map[string]*model.Message),
	}
}

func (m *Memory) Conversation(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	c.Participants = append([]model.Participant(nil), conv.Participants...)
	return &c, nil
}

func (m *Memory) SaveConversation(_ context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *conv
	c.Participants = append([]model.Participant(nil), conv.Participants...)
	m.convs[conv.ID] = &c
	return nil
}

func (m *Memory) RemoveParticipant(_ context.Context, convID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[convID]
	if !ok {
		return ErrNotFound
	}
	out := conv.Participants[:0]
	for _, p := range conv.Participants {
		if p.UserID != userID {
			out = append(out, p)
		}
	}
	conv.Participants = out
	return nil
}

func (m *Memory) Messages(_ context.Context, convID string, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.order[convID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := m.messages[convID][id]; ok {
			out = append(out, cloneMessage(msg))
		}
	}
	return out, nil
}

func (m *Memory) Message(_ context.Context, convID, msgID string) (*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[convID][msgID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneMessage(msg)
	return &c, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	convID := msg.ConversationID
	if m.messages[convID] == nil {
		m.messages[convID] = make(map[string]*model.Message)
	}
	if _, dup := m.messages[convID][msg.ID]; !dup {
		m.order[convID] = append(m.order[convID], msg.ID)
	}
	c := cloneMessage(msg)
	m.messages[convID][msg.ID] = &c
	return nil
}

func (m *Memory) UpdateMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ConversationID][msg.ID]; !ok {
		return ErrNotFound
	}
	c := cloneMessage(msg)
	m.messages[msg.ConversationID][msg.ID] = &c
	return nil
}

func (m *Memory) AddReaction(_ context.Context, convID, msgID, emoji string, r model.Reactor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[convID][msgID]
	if !ok {
		return false, ErrNotFound
	}
	for _, have := range msg.Metadata.Reactions[emoji] {
		if have.UserID == r.UserID {
			return false, nil
		}
	}
	if msg.Metadata.Reactions == nil {
		msg.Metadata.Reactions = model.ReactionSnapshot{}
	}
	msg.Metadata.Reactions[emoji] = append(msg.Metadata.Reactions[emoji], r)
	return true, nil
}

func (m *Memory) RemoveReaction(_ context.Context, convID, msgID, emoji, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[convID][msgID]
	if !ok {
		return false, ErrNotFound
	}
	set := msg.Metadata.Reactions[emoji]
	out := set[:0]
	removed := false
	for _, have := range set {
		if have.UserID == userID {
			removed = true
			continue
		}
		out = append(out, have)
	}
	if !removed {
		return false, nil
	}
	if len(out) == 0 {
		delete(msg.Metadata.Reactions, emoji)
	} else {
		msg.Metadata.Reactions[emoji] = out
	}
	return true, nil
}

func cloneMessage(msg *model.Message) model.Message {
	c := *msg
	c.AttachmentIDs = append([]string(nil), msg.AttachmentIDs...)
	c.Metadata.Reactions = msg.Metadata.Reactions.Clone()
	return c
}
