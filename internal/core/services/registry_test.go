package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

func TestRegistry_ResolveUnknownProvider(t *testing.T) {
	registry := NewRegistry(newFakeProvider("aws"))

	_, err := registry.Resolve(context.Background(), "gdrive")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestRegistry_ResolveHealthyProvider(t *testing.T) {
	provider := newFakeProvider("aws")
	registry := NewRegistry(provider)

	got, err := registry.Resolve(context.Background(), "aws")
	require.NoError(t, err)
	assert.Equal(t, "aws", got.ID())
	assert.Equal(t, 1, provider.verifyCalls)
	assert.Zero(t, provider.refreshCalls, "healthy provider needs no recovery")
}

func TestRegistry_ResolveRecoversViaTokenRefresh(t *testing.T) {
	provider := newFakeProvider("gdrive")
	provider.verifyErr = domain.ErrAuthExpired
	provider.verifyPasses = 1 // first verification fails, the retry passes

	registry := NewRegistry(provider)

	_, err := registry.Resolve(context.Background(), "gdrive")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.refreshCalls)
	assert.Zero(t, provider.authCalls, "refresh sufficed")
}

func TestRegistry_ResolveRecoversViaAuthenticate(t *testing.T) {
	provider := newFakeProvider("gdrive")
	provider.verifyErr = domain.ErrAuthExpired
	provider.verifyPasses = 1 // the post-authenticate check passes
	provider.refreshErr = domain.ErrTokenRefreshFailed

	registry := NewRegistry(provider)

	_, err := registry.Resolve(context.Background(), "gdrive")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.refreshCalls)
	assert.Equal(t, 1, provider.authCalls)
}

func TestRegistry_ResolveFailsAfterFullChain(t *testing.T) {
	provider := newFakeProvider("gdrive")
	provider.verifyErr = errors.New("backend unreachable")
	provider.verifyPasses = -1
	provider.refreshErr = domain.ErrTokenRefreshFailed
	provider.authErr = domain.ErrAuthRequired

	registry := NewRegistry(provider)

	_, err := registry.Resolve(context.Background(), "gdrive")
	require.Error(t, err)
	assert.ErrorContains(t, err, "backend unreachable")
	assert.Equal(t, 1, provider.refreshCalls)
	assert.Equal(t, 1, provider.authCalls)
}

func TestRegistry_StatusReportsAllProvidersSorted(t *testing.T) {
	healthy := newFakeProvider("aws")
	broken := newFakeProvider("azure")
	broken.verifyErr = domain.ErrAuthExpired
	broken.verifyPasses = -1

	registry := NewRegistry(healthy, broken)

	statuses := registry.Status(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "aws", statuses[0].Providers)
	assert.True(t, statuses[0].Active)
	assert.Equal(t, "Fake aws", statuses[0].Name)
	assert.Equal(t, "azure", statuses[1].Providers)
	assert.False(t, statuses[1].Active)
}
