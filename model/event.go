package model

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// EventType tags every frame on a conversation stream.
type EventType string

const (
	EventMessageCreated  EventType = "message.created"
	EventMessageUpdated  EventType = "message.updated"
	EventMessageDeleted  EventType = "message.deleted"
	EventReactionAdded   EventType = "reaction.added"
	EventReactionRemoved EventType = "reaction.removed"
	EventTypingStart     EventType = "typing.start"
	EventTypingStop      EventType = "typing.stop"
)

// Envelope wraps every frame exchanged on the websocket stream.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnState is the per-conversation connection indicator. It is owned by the
// stream consumer and read by the session for display only.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event is one typed variant delivered on a conversation stream. The session
// event loop switches over the concrete types.
type Event interface{ isEvent() }

type MessageCreated struct {
	Message Message `json:"message"`
}

type MessageUpdated struct {
	Message Message `json:"message"`
}

type MessageDeleted struct {
	MessageID string `json:"messageId"`
	Ts        int64  `json:"ts,omitempty"`
}

type ReactionAdded struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Reactor   // flattened into the payload
}

type ReactionRemoved struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Reactor
}

type TypingStart struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

type TypingStop struct {
	UserID string `json:"userId"`
}

// ConnectionChanged is emitted locally by the stream consumer; it never
// travels on the wire and must not mutate message or reaction state.
type ConnectionChanged struct {
	State ConnState
}

func (MessageCreated) isEvent()    {}
func (MessageUpdated) isEvent()    {}
func (MessageDeleted) isEvent()    {}
func (ReactionAdded) isEvent()     {}
func (ReactionRemoved) isEvent()   {}
func (TypingStart) isEvent()       {}
func (TypingStop) isEvent()        {}
func (ConnectionChanged) isEvent() {}

// ErrUnknownEvent is returned for envelope types this runtime does not
// understand. Consumers skip those frames instead of failing the stream.
var ErrUnknownEvent = errors.New("unknown event type")

// DecodeEvent parses one wire frame into its typed variant.
func DecodeEvent(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	var (
		ev  Event
		err error
	)
	switch env.Type {
	case EventMessageCreated:
		var v MessageCreated
		err = json.Unmarshal(env.Data, &v)
		ev = v
	case EventMessageUpdated:
		var v MessageUpdated
		err = json.Unmarshal(env.Data, &v)
		ev = v
	case EventMessageDeleted:
		var v MessageDeleted
		err = json.Unmarshal(env.Data, &v)
		ev = v
	case EventReactionAdded:
		var v ReactionAdded
		err = json.Unmarshal(env.Data, &v)
		ev = v
	case EventReactionRemoved:
		var v ReactionRemoved
		err = json.Unmarshal(env.Data, &v)
		ev = v
	case EventTypingStart:
		var v TypingStart
		err = json.Unmarshal(env.Data, &v)
		ev = v
	case EventTypingStop:
		var v TypingStop
		err = json.Unmarshal(env.Data, &v)
		ev = v
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", env.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", env.Type)
	}
	return ev, nil
}

// EncodeEvent builds the wire frame for a typed variant.
func EncodeEvent(ev Event) ([]byte, error) {
	var t EventType
	switch ev.(type) {
	case MessageCreated:
		t = EventMessageCreated
	case MessageUpdated:
		t = EventMessageUpdated
	case MessageDeleted:
		t = EventMessageDeleted
	case ReactionAdded:
		t = EventReactionAdded
	case ReactionRemoved:
		t = EventReactionRemoved
	case TypingStart:
		t = EventTypingStart
	case TypingStop:
		t = EventTypingStop
	default:
		return nil, fmt.Errorf("event %T has no wire representation", ev)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", t)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}
