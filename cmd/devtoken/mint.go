package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

type options struct {
	subjectType  string
	subjectID    string
	role         string
	restaurantID string
	revoke       string
}

type sessionRegistry interface {
	Register(ctx context.Context, accessID string, subjectID uuid.UUID, role enums.ActorRole) error
	Revoke(ctx context.Context, accessID string) error
}

var now = time.Now

func (o options) payload() (auth.AccessTokenPayload, error) {
	var payload auth.AccessTokenPayload

	payload.SubjectType = enums.SubjectType(strings.TrimSpace(o.subjectType))
	role, err := enums.ParseActorRole(o.role)
	if err != nil {
		return payload, err
	}
	payload.Role = role

	payload.SubjectID = uuid.New()
	if o.subjectID != "" {
		if payload.SubjectID, err = uuid.Parse(o.subjectID); err != nil {
			return payload, fmt.Errorf("invalid -subject: %w", err)
		}
	}
	if o.restaurantID != "" {
		id, err := uuid.Parse(o.restaurantID)
		if err != nil {
			return payload, fmt.Errorf("invalid -restaurant: %w", err)
		}
		payload.RestaurantID = &id
	}
	payload.JTI = uuid.NewString()
	return payload, nil
}

// mint signs a token and, when sessions is set, registers its jti so the
// resolver accepts it.
func mint(ctx context.Context, cfg config.JWTConfig, sessions sessionRegistry, opts options, out io.Writer) error {
	payload, err := opts.payload()
	if err != nil {
		return err
	}
	token, err := auth.MintAccessToken(cfg, now(), payload)
	if err != nil {
		return err
	}
	if sessions != nil {
		if err := sessions.Register(ctx, payload.JTI, payload.SubjectID, payload.Role); err != nil {
			return fmt.Errorf("register session: %w", err)
		}
	}
	fmt.Fprintf(out, "jti=%s subject=%s role=%s\n%s\n", payload.JTI, payload.SubjectID, payload.Role, token)
	return nil
}

func revoke(ctx context.Context, sessions sessionRegistry, accessID string, out io.Writer) error {
	if sessions == nil {
		return fmt.Errorf("session store unavailable")
	}
	if err := sessions.Revoke(ctx, accessID); err != nil {
		return err
	}
	fmt.Fprintln(out, "revoked", accessID)
	return nil
}
