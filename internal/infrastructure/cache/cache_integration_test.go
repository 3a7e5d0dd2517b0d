package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/commission-protection-backend/internal/testutil/containers"
)

func TestManager_RedisContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rc, err := containers.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(context.Background()) })

	m, err := NewManager(testRedisConfig(rc.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.HealthCheck(ctx))
	require.NoError(t, m.Cache.SetJSON(ctx, ProviderResponsePrefix+"attom:jane doe", []string{"123 Main St"}, time.Minute))

	var got []string
	require.NoError(t, m.Cache.GetJSON(ctx, ProviderResponsePrefix+"attom:jane doe", &got))
	assert.Equal(t, []string{"123 Main St"}, got)

	ok, err := m.RateLimiter.Allow(ctx, ScanQuotaPrefix+"agent-1", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.RateLimiter.Allow(ctx, ScanQuotaPrefix+"agent-1", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}
