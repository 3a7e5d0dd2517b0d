package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/metrics"
)

// HubConfig tunes websocket sessions
type HubConfig struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultHubConfig returns production session settings
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     32,
	}
}

// Message is the frame pushed to connected agents
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type session struct {
	id      string
	agentID string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub

	mu     sync.Mutex
	closed bool
}

// Hub keeps live alert sessions per agent
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*session
	upgrader websocket.Upgrader
	config   HubConfig
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// NewHub creates an empty hub
func NewHub(cfg HubConfig, m *metrics.Registry, logger *zap.Logger) *Hub {
	if cfg.PingPeriod <= 0 {
		cfg = DefaultHubConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin is enforced by the auth token, not the Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// ServeWS upgrades the request into a session for agentID. The caller has
// already authenticated the agent.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, agentID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("agent_id", agentID), zap.Error(err))
		return
	}

	s := &session{
		id:      uuid.NewString(),
		agentID: agentID,
		conn:    conn,
		send:    make(chan []byte, h.config.SendBuffer),
		hub:     h,
	}
	h.register(s)

	go s.writePump()
	go s.readPump()
}

// Sessions returns the number of live sessions for an agent
func (h *Hub) Sessions(agentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[agentID])
}

// Send pushes a message to every session of the agent. It returns
// ErrNoRecipient when the agent has no session to receive it.
func (h *Hub) Send(agentID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[agentID]))
	for _, s := range h.sessions[agentID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNoRecipient)
	}

	delivered := 0
	for _, s := range targets {
		if s.trySend(data) {
			delivered++
			continue
		}
		h.logger.Warn("dropping websocket session with full buffer", zap.String("session_id", s.id))
		s.close()
	}
	if delivered == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNoRecipient)
	}
	return nil
}

func (h *Hub) NotifyBreachConfirmed(ctx context.Context, notice BreachNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Send(notice.AgentID, Message{Type: "breach_confirmed", Data: notice})
}

// Close drops every session
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*session
	for _, byID := range h.sessions {
		for _, s := range byID {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range all {
		s.close()
	}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	if h.sessions[s.agentID] == nil {
		h.sessions[s.agentID] = make(map[string]*session)
	}
	h.sessions[s.agentID][s.id] = s
	h.mu.Unlock()

	h.metrics.AddAlertSessions(1)
	h.logger.Debug("alert session opened", zap.String("agent_id", s.agentID), zap.String("session_id", s.id))
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	byID, ok := h.sessions[s.agentID]
	if ok {
		if _, present := byID[s.id]; !present {
			ok = false
		}
		delete(byID, s.id)
		if len(byID) == 0 {
			delete(h.sessions, s.agentID)
		}
	}
	h.mu.Unlock()

	if ok {
		h.metrics.AddAlertSessions(-1)
		h.logger.Debug("alert session closed", zap.String("agent_id", s.agentID), zap.String("session_id", s.id))
	}
}

// trySend queues without blocking; false means closed or full
func (s *session) trySend(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()

	s.hub.unregister(s)
}

// readPump drains client frames so pongs and close frames are processed
func (s *session) readPump() {
	defer func() {
		s.close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.hub.config.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.hub.config.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.hub.config.PongTimeout))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.logger.Debug("websocket read error", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.hub.config.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.config.WriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}
