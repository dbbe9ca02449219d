package gdrive

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

func TestNewProviderRequiresCredentials(t *testing.T) {
	_, err := NewProvider(Config{ClientID: "id", ClientSecret: "secret"})
	require.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestServiceBuiltOnceUnderConcurrency(t *testing.T) {
	p, err := NewProvider(Config{ClientID: "id", ClientSecret: "secret", RefreshToken: "tok"})
	require.NoError(t, err)

	const goroutines = 8
	svcs := make([]any, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, err := p.service(context.Background())
			assert.NoError(t, err)
			svcs[i] = svc
		}(i)
	}
	wg.Wait()

	require.NotNil(t, svcs[0])
	for i := 1; i < goroutines; i++ {
		assert.Same(t, svcs[0], svcs[i])
	}
}
