package realtime

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/tableserve-backend/api/responses"
	"github.com/angelmondragon/tableserve-backend/internal/orderstatus"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

type identityResolver interface {
	Resolve(ctx context.Context, raw string) (auth.Identity, error)
}

// Server authenticates websocket handshakes and attaches clients to the hub.
type Server struct {
	hub      *Hub
	resolver identityResolver
	cfg      config.RealtimeConfig
	logg     *logger.Logger
	upgrader websocket.Upgrader
	commands *commandRouter
}

func NewServer(hub *Hub, resolver identityResolver, statuses orderstatus.Service, cfg config.RealtimeConfig, logg *logger.Logger) *Server {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	s := &Server{
		hub:      hub,
		resolver: resolver,
		cfg:      cfg,
		logg:     logg,
		commands: &commandRouter{hub: hub, statuses: statuses},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ServeHTTP handles GET /ws. The credential comes from the Authorization
// header or the token query parameter; rejected handshakes never upgrade.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.Header.Get("Authorization")
	if strings.TrimSpace(raw) == "" {
		raw = r.URL.Query().Get("token")
	}
	identity, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		responses.WriteError(ctx, s.logg, w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "realtime.upgrade.failed")
		return
	}

	client := newClient(s.hub, conn, identity, s.cfg, s.commands)
	s.hub.register(client)

	// Connection lifetime is independent of the handshake request.
	connCtx := s.logg.WithFields(context.Background(), map[string]any{
		"subject_id":   identity.SubjectID.String(),
		"subject_type": string(identity.SubjectType),
	})
	s.logg.Info(connCtx, "realtime.client.connected")

	go client.writePump()
	go client.readPump(connCtx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}
