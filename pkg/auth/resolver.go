package auth

import (
	"context"
	"strings"

	"github.com/angelmondragon/tableserve-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
)

// SessionChecker reports whether an access id still has a live session.
type SessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Resolver turns a bearer credential into an Identity. It is shared by the
// HTTP middleware and the websocket handshake.
type Resolver struct {
	cfg      config.JWTConfig
	sessions SessionChecker
}

// NewResolver builds a Resolver. sessions may be nil unless cfg.RequireSession is set.
func NewResolver(cfg config.JWTConfig, sessions SessionChecker) *Resolver {
	return &Resolver{cfg: cfg, sessions: sessions}
}

// Resolve validates the raw token ("Bearer " prefix optional).
func (r *Resolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	token := strings.TrimSpace(raw)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return Identity{}, authFailed(nil, "missing bearer credential")
	}

	claims, err := ParseAccessToken(r.cfg, token)
	if err != nil {
		return Identity{}, authFailed(err, "invalid token")
	}

	if r.cfg.RequireSession {
		if r.sessions == nil || claims.ID == "" {
			return Identity{}, authFailed(nil, "session revoked")
		}
		ok, err := r.sessions.HasSession(ctx, claims.ID)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session lookup failed")
		}
		if !ok {
			return Identity{}, authFailed(nil, "session revoked")
		}
	}

	return claims.Identity(), nil
}

func authFailed(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, message).WithReason(pkgerrors.ReasonAuthenticationFailed)
}
