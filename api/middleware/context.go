package middleware

import (
	"context"

	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the caller resolved by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return identity, ok
}

// CallerFromContext is IdentityFromContext for handlers behind Auth.
func CallerFromContext(ctx context.Context) (auth.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity, nil
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

func subjectFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return string(identity.SubjectType) + ":" + identity.SubjectID.String()
}
