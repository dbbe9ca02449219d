package driven

import (
	"context"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

// ProviderRegistry resolves storage backends by provider id. Resolution
// happens per call; callers must not cache the returned provider across
// unrelated operations.
type ProviderRegistry interface {
	// Resolve returns the backend for a provider id, verifying it is
	// usable first. Implementations run the verify -> refresh-token ->
	// authenticate recovery chain before giving up.
	// Returns domain.ErrUnknownProvider for an unregistered id.
	Resolve(ctx context.Context, providerID string) (CloudProvider, error)

	// Status reports each registered backend and whether it is reachable
	// and authenticated right now. Used for the connect announcement.
	Status(ctx context.Context) []domain.ProviderStatus
}
