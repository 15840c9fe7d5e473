package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"CareChat/logger"
	mid "CareChat/middleware/security"
	"CareChat/model"
	"CareChat/tools/ids"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsReadLimit  = 1 << 20
	wsPongWait   = 60 * time.Second
	wsPingEvery  = 30 * time.Second
	wsWriteGrace = 5 * time.Second
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// handleWS subscribes one authenticated participant to a conversation's
// event stream. Inbound frames are typing signals only; everything else the
// client does goes through the REST surface.
func (s *Server) handleWS(c *gin.Context) {
	convID := c.Query("conversation")
	if convID == "" {
		fail(c, http.StatusBadRequest, "conversation missing")
		return
	}
	if _, _, authorized := s.member(c, convID); !authorized {
		return
	}
	caller := mid.Caller(c)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), caller.UserID, caller.UserName, convID, ws, s.cfg.SendQueue)
	s.hub.Register(client)
	defer func() {
		s.hub.Unregister(client)
		// A dropped connection ends the typing session implicitly.
		s.relay.Publish(convID, model.TypingStop{UserID: client.UserID})
	}()

	ws.SetReadLimit(wsReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(wsPingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteGrace))
			}
		}
	}()

	for {
		mt, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] read err conn=%s err=%v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ev, err := model.DecodeEvent(raw)
		if err != nil {
			continue
		}
		// The gateway stamps the sender identity; clients cannot spoof
		// another participant's typing state.
		switch ev.(type) {
		case model.TypingStart:
			s.relay.Publish(convID, model.TypingStart{UserID: client.UserID, UserName: client.UserName})
		case model.TypingStop:
			s.relay.Publish(convID, model.TypingStop{UserID: client.UserID})
		}
	}
}
