package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/square"
)

// Gateway is a resolved provider plus the secret its callbacks are signed with.
type Gateway struct {
	RestaurantID  uuid.UUID
	Provider      Provider
	WebhookSecret string
	Signature     string
}

// ProviderFactory builds a provider from a restaurant's gateway row.
type ProviderFactory func(ctx context.Context, cfg models.RestaurantPaymentGateway) (Provider, error)

// Registry caches one provider per credential signature. Restaurants sharing
// credentials share a provider; Invalidate drops a restaurant's entry so the
// next lookup rereads its row.
type Registry struct {
	repo    Repository
	build   ProviderFactory
	logg    *logger.Logger
	mu      sync.Mutex
	byRest  map[uuid.UUID]*Gateway
	bySig   map[string]Provider
	sigRefs map[string]int
}

func NewRegistry(repo Repository, build ProviderFactory, logg *logger.Logger) (*Registry, error) {
	if repo == nil {
		return nil, fmt.Errorf("gateway repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if build == nil {
		build = SquareFactory(logg)
	}
	return &Registry{
		repo:    repo,
		build:   build,
		logg:    logg,
		byRest:  map[uuid.UUID]*Gateway{},
		bySig:   map[string]Provider{},
		sigRefs: map[string]int{},
	}, nil
}

// SquareFactory builds square providers over pkg/square and manual providers for manual rows.
func SquareFactory(logg *logger.Logger) ProviderFactory {
	return func(ctx context.Context, cfg models.RestaurantPaymentGateway) (Provider, error) {
		switch cfg.Provider {
		case enums.PaymentProviderManual:
			return manualProvider{}, nil
		case enums.PaymentProviderSquare:
			client, err := square.NewClient(ctx, square.Credentials{
				AccessToken: cfg.AccessToken,
				Environment: cfg.Environment,
				LocationID:  cfg.LocationID,
			}, logg)
			if err != nil {
				return nil, err
			}
			return newSquareProvider(client), nil
		default:
			return nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
		}
	}
}

// ClientFor resolves the gateway a restaurant settles with. Restaurants without
// an active row fall back to the manual provider.
func (r *Registry) ClientFor(ctx context.Context, restaurantID uuid.UUID) (*Gateway, error) {
	r.mu.Lock()
	if gw, ok := r.byRest[restaurantID]; ok {
		r.mu.Unlock()
		return gw, nil
	}
	r.mu.Unlock()

	cfg, err := r.repo.ActiveGateway(ctx, restaurantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment gateway")
	}
	if cfg == nil {
		return &Gateway{RestaurantID: restaurantID, Provider: manualProvider{}}, nil
	}

	sig := signatureOf(*cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gw, ok := r.byRest[restaurantID]; ok {
		return gw, nil
	}
	provider, ok := r.bySig[sig]
	if !ok {
		provider, err = r.build(ctx, *cfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build payment gateway").
				WithReason(pkgerrors.ReasonGatewayUnavailable)
		}
		r.bySig[sig] = provider
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"restaurant_id": restaurantID.String(),
			"provider":      string(cfg.Provider),
			"environment":   cfg.Environment,
		}), "gateways.registry.client_built")
	}
	gw := &Gateway{
		RestaurantID:  restaurantID,
		Provider:      provider,
		WebhookSecret: cfg.WebhookSecret,
		Signature:     sig,
	}
	r.byRest[restaurantID] = gw
	r.sigRefs[sig]++
	return gw, nil
}

// Invalidate forgets a restaurant's cached gateway. The provider itself is
// released once no restaurant references its signature.
func (r *Registry) Invalidate(restaurantID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	gw, ok := r.byRest[restaurantID]
	if !ok {
		return false
	}
	delete(r.byRest, restaurantID)
	r.sigRefs[gw.Signature]--
	if r.sigRefs[gw.Signature] <= 0 {
		delete(r.sigRefs, gw.Signature)
		delete(r.bySig, gw.Signature)
	}
	return true
}

// Size reports the number of distinct providers held.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySig)
}

func signatureOf(cfg models.RestaurantPaymentGateway) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(cfg.Provider),
		strings.ToLower(strings.TrimSpace(cfg.Environment)),
		cfg.AccessToken,
		cfg.LocationID,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}
