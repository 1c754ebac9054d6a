package revocation_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/server/revocation"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c := revocation.NewMemoryCache(func() time.Time { return now })
	require.False(t, c.IsRevoked("jti-1"))

	require.NoError(t, c.Add("jti-1", now.Add(time.Minute)))
	require.NoError(t, c.Add("jti-2", now.Add(time.Hour)))
	require.True(t, c.IsRevoked("jti-1"))
	require.Zero(t, c.Cleanup(), "nothing has expired on the cache clock")

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, c.Cleanup())
	require.False(t, c.IsRevoked("jti-1"))
	require.True(t, c.IsRevoked("jti-2"))

	require.NoError(t, c.Add("jti-2", now), "an earlier expiry does not shorten the entry")
	now = now.Add(time.Minute)
	require.Zero(t, c.Cleanup())
	require.True(t, c.IsRevoked("jti-2"))
}
