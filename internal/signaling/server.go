package signaling

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/auth"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/origin"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/room"
)

// Config wires together the runtime dependencies for the signaling service.
type Config struct {
	// Registry holds every room. If nil, the server creates its own.
	Registry *room.Registry

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Origins gates WebSocket upgrades. The zero value allows same-host
	// browsers and non-browser clients.
	Origins origin.Policy

	// Authorizer enforces AUTH_MODE before the upgrade. Nil disables auth.
	Authorizer *auth.Authorizer

	// ConnLimiter bounds new connections per client IP. Nil disables it.
	ConnLimiter *ratelimit.KeyedLimiter

	// Keepalive. Zero values fall back to the config defaults.
	IdleTimeout  time.Duration
	PingInterval time.Duration

	// Inbound hardening. Zero values fall back to the config defaults.
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
}

// Server implements the room signaling surface.
//
// Endpoints:
//   - GET /ws/{roomID} : WebSocket signaling for one room
//   - GET /            : liveness banner with the live room count
type Server struct {
	cfg      Config
	registry *room.Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
}

func NewServer(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = room.NewRegistry(room.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = config.DefaultSignalingWSIdleTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = config.DefaultSignalingWSPingInterval
	}
	if cfg.PingInterval >= cfg.IdleTimeout {
		cfg.PingInterval = cfg.IdleTimeout / 2
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = config.DefaultMaxSignalingMessageBytes
	}
	if cfg.MaxMessagesPerSecond <= 0 {
		cfg.MaxMessagesPerSecond = config.DefaultMaxSignalingMessagesPerSecond
	}

	s := &Server{
		cfg:      cfg,
		registry: cfg.Registry,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		conns:    make(map[*conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if cfg.Origins.Allow(r) {
				return true
			}
			s.metrics.ConnectionRejected("origin")
			s.log.Warn("rejected websocket origin", "origin", r.Header.Get("Origin"), "remote_addr", r.RemoteAddr)
			return false
		},
	}
	return s
}

// Registry returns the room registry backing this server.
func (s *Server) Registry() *room.Registry { return s.registry }

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	var ws http.Handler = http.HandlerFunc(s.handleWebSocket)
	ws = s.cfg.Authorizer.Middleware(ws)
	ws = s.cfg.ConnLimiter.Middleware(ws, func(r *http.Request) {
		s.metrics.ConnectionRejected("rate_limited")
		s.log.Warn("connection rate limit exceeded", "client_ip", ratelimit.ClientIP(r))
	})
	mux.Handle("GET /ws/{roomID}", ws)
	mux.HandleFunc("GET /{$}", s.handleRoot)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Close terminates every open connection with a going-away close frame.
// Connections accepted afterwards are closed immediately.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = nil
	s.closed = true
	s.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, c)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "signaling server running",
		"rooms":   s.registry.Len(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	if roomID == "" {
		http.NotFound(w, r)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		return
	}

	c := newConn(s, ws, roomID)
	if !s.track(c) {
		c.shutdown()
		return
	}
	s.metrics.ConnectionOpened()
	c.log.Debug("websocket connected", "remote_addr", r.RemoteAddr)

	go c.writeLoop()
	c.run()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
