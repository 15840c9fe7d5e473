package gateway

import (
	"github.com/gin-gonic/gin"

	mid "CareChat/middleware/security"
	"CareChat/service/kafka"
	"CareChat/service/natsx"
	"CareChat/service/storage"
	sec "CareChat/tools/security"
)

// Config tunes one gateway node.
type Config struct {
	Addr          string
	NodeID        string
	JWTSecret     []byte
	SendQueue     int // per-connection outbound queue
	FanoutWorkers int
	FanoutQueue   int
}

func (c *Config) norm() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.NodeID == "" {
		c.NodeID = "gw-1"
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// Server is the reference collaborator gateway: it exposes the
// request/response surface the session consumes plus the per-conversation
// websocket event stream.
type Server struct {
	cfg    Config
	store  storage.Store
	hub    *Hub
	relay  *Relay
	notify *kafka.Producer
	auth   sec.Options
}

func NewServer(cfg Config, store storage.Store, nats *natsx.Manager, notify *kafka.Producer) (*Server, error) {
	cfg.norm()
	hub := NewHub()
	relay := NewRelay(cfg.NodeID, hub, NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue), nats)
	if err := relay.Start(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		hub:    hub,
		relay:  relay,
		notify: notify,
		auth:   sec.DefaultOptions(cfg.JWTSecret),
	}, nil
}

// Router builds the gin engine with the full route surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	authed := r.Group("/", mid.Middleware(s.auth))
	authed.GET("/conversations/:id", s.getConversation)
	authed.GET("/conversations/:id/messages", s.listMessages)
	authed.POST("/conversations/:id/messages", s.createMessage)
	authed.PUT("/conversations/:id/messages/:msgId", s.updateMessage)
	authed.DELETE("/conversations/:id/messages/:msgId", s.deleteMessage)
	authed.POST("/conversations/:id/messages/:msgId/reactions", s.addReaction)
	authed.DELETE("/conversations/:id/messages/:msgId/reactions/:emoji", s.removeReaction)
	authed.DELETE("/conversations/:id/participants/:userId", s.leaveConversation)
	authed.GET("/ws", s.handleWS)
	return r
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	return s.Router().Run(s.cfg.Addr)
}
