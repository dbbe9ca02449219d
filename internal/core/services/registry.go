package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
	"github.com/custodia-labs/shelter-agent/internal/logger"
)

// Registry resolves storage backends by provider id. Every resolution
// runs the verify -> refresh-token -> authenticate recovery chain, so a
// backend handed to a caller has just proven it is usable.
type Registry struct {
	providers map[string]driven.CloudProvider
}

var _ driven.ProviderRegistry = (*Registry)(nil)

// NewRegistry creates a registry over the given backends, keyed by their
// provider ids.
func NewRegistry(providers ...driven.CloudProvider) *Registry {
	byID := make(map[string]driven.CloudProvider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &Registry{providers: byID}
}

// Resolve returns a verified backend for the provider id.
func (r *Registry) Resolve(ctx context.Context, providerID string) (driven.CloudProvider, error) {
	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, providerID)
	}
	if err := r.ensureUsable(ctx, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// ensureUsable verifies the backend, attempting token refresh and then
// full re-authentication before giving up.
func (r *Registry) ensureUsable(ctx context.Context, provider driven.CloudProvider) error {
	verifyErr := provider.VerifyConnection(ctx)
	if verifyErr == nil {
		return nil
	}
	logger.Warnf("registry: provider %s failed verification: %v", provider.ID(), verifyErr)

	if err := provider.RefreshToken(ctx); err != nil {
		logger.Debugf("registry: provider %s token refresh failed: %v", provider.ID(), err)
	} else if provider.VerifyConnection(ctx) == nil {
		logger.Infof("registry: provider %s recovered after token refresh", provider.ID())
		return nil
	}

	if err := provider.Authenticate(ctx); err != nil {
		logger.Debugf("registry: provider %s re-authentication failed: %v", provider.ID(), err)
	} else if provider.VerifyConnection(ctx) == nil {
		logger.Infof("registry: provider %s recovered after re-authentication", provider.ID())
		return nil
	}

	return fmt.Errorf("provider %s unusable: %w", provider.ID(), verifyErr)
}

// Status reports each registered backend, ordered by provider id.
func (r *Registry) Status(ctx context.Context) []domain.ProviderStatus {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	statuses := make([]domain.ProviderStatus, 0, len(ids))
	for _, id := range ids {
		provider := r.providers[id]
		statuses = append(statuses, domain.ProviderStatus{
			Providers: id,
			Name:      provider.Name(),
			Active:    provider.VerifyConnection(ctx) == nil,
		})
	}
	return statuses
}
