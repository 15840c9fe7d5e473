package gateway

import (
	"encoding/json"
	"strings"

	"github.com/golang/glog"

	"CareChat/model"
	"CareChat/service/natsx"
)

const convSubjectPrefix = "chat.conv."

// relayFrame wraps an event frame with its origin node so a node does not
// re-deliver its own NATS echo.
type relayFrame struct {
	Node  string          `json:"node"`
	Frame json.RawMessage `json:"frame"`
}

// Relay delivers conversation events to local websocket subscribers and,
// when NATS is configured, to every other gateway node.
type Relay struct {
	nodeID string
	hub    *Hub
	fan    *Fanout
	nats   *natsx.Manager
}

func NewRelay(nodeID string, hub *Hub, fan *Fanout, nats *natsx.Manager) *Relay {
	return &Relay{nodeID: nodeID, hub: hub, fan: fan, nats: nats}
}

// Start wires the cross-node subscription. Single-node deployments (nil
// NATS manager) skip it.
func (r *Relay) Start() error {
	return r.nats.Subscribe(convSubjectPrefix+"*", r.onRemote)
}

// Publish encodes and delivers one event for a conversation.
func (r *Relay) Publish(convID string, ev model.Event) {
	frame, err := model.EncodeEvent(ev)
	if err != nil {
		glog.Errorf("relay: encode event conv=%s err=%v", convID, err)
		return
	}
	r.fan.Broadcast(r.hub.Clients(convID), frame)

	wrapped, err := json.Marshal(relayFrame{Node: r.nodeID, Frame: frame})
	if err != nil {
		return
	}
	if err := r.nats.Publish(convSubjectPrefix+convID, wrapped); err != nil {
		glog.Warningf("relay: nats publish conv=%s err=%v", convID, err)
	}
}

func (r *Relay) onRemote(subject string, data []byte) {
	var wrapped relayFrame
	if err := json.Unmarshal(data, &wrapped); err != nil {
		glog.Warningf("relay: bad remote frame subject=%s err=%v", subject, err)
		return
	}
	if wrapped.Node == r.nodeID {
		return // our own echo
	}
	convID := strings.TrimPrefix(subject, convSubjectPrefix)
	r.fan.Broadcast(r.hub.Clients(convID), wrapped.Frame)
}
