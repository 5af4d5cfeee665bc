package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/park285/cheese-chess-server/internal/auth"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const healthTimeout = 2 * time.Second

// Options tunes per-connection behaviour.
type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	PingInterval   time.Duration
}

// Server accepts authenticated websocket connections and runs the protocol
// for each of them.
type Server struct {
	hub      *Hub
	proto    *Protocol
	verifier *auth.Verifier
	presence Presence
	opts     Options

	// hijacked connections are invisible to http.Server.Shutdown
	mu      sync.Mutex
	closing bool
	conns   sync.WaitGroup
}

func NewServer(hub *Hub, proto *Protocol, verifier *auth.Verifier, presence Presence, opts Options) *Server {
	return &Server{hub: hub, proto: proto, verifier: verifier, presence: presence, opts: opts}
}

// Wait refuses new upgrades and blocks until every open connection has run
// its disconnect path, or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

// Routes mounts the health probe and the authenticated websocket endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.With(s.verifier.Middleware()).Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.presence.Ping(ctx); err != nil {
		obslog.L().Warn("health_redis_error", zap.Error(err))
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.track() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("identity", principal.Login), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(principal.Login, principal.Name, conn, s.opts.SendBuffer)
	s.hub.Register(c)
	if err := s.presence.MarkOnline(ctx, c.Identity()); err != nil {
		obslog.L().Warn("presence_online_error", zap.String("identity", c.Identity()), zap.Error(err))
	}
	obslog.L().Info("ws_connect", zap.String("identity", c.Identity()), zap.String("remote", r.RemoteAddr))

	go c.writeLoop(ctx, cancel)
	go c.pingLoop(ctx, cancel, s.opts.PingInterval)
	s.proto.Connected(ctx, c)

	err = c.readLoop(ctx, func(cmd chessdto.Command) { s.proto.Handle(ctx, c, cmd) })
	obslog.L().Info("ws_disconnect", zap.String("identity", c.Identity()), zap.String("reason", closeReason(err)))

	cancel()
	c.stop()
	s.hub.Unregister(c)

	// ctx is cancelled; teardown gets its own deadline.
	tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()
	s.proto.Disconnected(tctx, c)
	if err := s.presence.MarkOffline(tctx, c.Identity()); err != nil {
		obslog.L().Warn("presence_offline_error", zap.String("identity", c.Identity()), zap.Error(err))
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func closeReason(err error) string {
	if err == nil {
		return ""
	}
	if status := websocket.CloseStatus(err); status != -1 {
		return status.String()
	}
	return err.Error()
}
