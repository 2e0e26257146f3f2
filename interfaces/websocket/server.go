package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/session"
)

// Server upgrades view requests and starts one session per connection.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	fetcher  session.Fetcher
	opts     []session.Option
	logger   *zap.Logger
}

// NewServer creates a server. checkOrigin nil accepts every origin.
func NewServer(hub *Hub, fetcher session.Fetcher, checkOrigin func(*http.Request) bool, logger *zap.Logger, opts ...session.Option) *Server {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
	}
}

// HandleWebSocket handles GET /api/v1/view/ws.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(s.hub, conn, s.logger)
	client.Start(s.fetcher, s.opts...)

	s.logger.Info("View connection established",
		zap.String("connectionID", client.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// OriginChecker accepts requests without an Origin header and those whose
// origin is listed. An empty list or "*" accepts everything.
func OriginChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return nil
		}
		set[strings.TrimSuffix(o, "/")] = true
	}
	if len(set) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
