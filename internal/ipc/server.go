// Package ipc bridges window content and the controller over a local
// WebSocket: inbound action requests, outbound notifications.
package ipc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/land007/theia/internal/config"
	"github.com/land007/theia/internal/logging"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The bridge only listens on loopback.
		return true
	},
}

// Handler receives action requests sent by window content.
type Handler interface {
	CreateNewWindow(url string)
	OpenExternal(url string)
}

// Message is the wire format in both directions.
type Message struct {
	Type    string      `json:"type"`
	URL     string      `json:"url,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Server is the local content bridge. It implements app.Contribution and
// keyboard.Notifier.
type Server struct {
	cfg     config.IPCConfig
	handler Handler
	log     *logging.Logger

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	listener net.Listener
	srv      *http.Server
}

// NewServer creates the bridge; it does not listen until Start.
func NewServer(cfg config.IPCConfig, handler Handler, log *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     log,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Name implements app.Contribution.
func (s *Server) Name() string { return "ipc-bridge" }

// Start begins listening on the configured loopback address.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/ipc", s.handleConnection)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ipc listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.srv = &http.Server{Handler: router}
	srv := s.srv
	s.mu.Unlock()

	s.log.Info("ipc bridge listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("ipc bridge stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the bridge down and drops all connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Broadcast pushes a notification to every connected content page.
func (s *Server) Broadcast(event string, payload interface{}) {
	msg := Message{Type: event, Payload: payload}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Warn("ipc broadcast failed", zap.Error(err))
		}
	}
}

func (s *Server) handleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("ipc upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create-new-window":
			s.handler.CreateNewWindow(msg.URL)
		case "open-external":
			s.handler.OpenExternal(msg.URL)
		default:
			s.log.Debug("ignoring unknown ipc message", zap.String("type", msg.Type))
		}
	}
}
