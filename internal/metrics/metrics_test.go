package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/carrito", "/carrito"},
		{"/carrito/item/12", "/carrito/item/:id"},
		{"/pedidos/7?x=1", "/pedidos/:id"},
		{"/pedidos/mis-pedidos", "/pedidos/mis-pedidos"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, metrics.CanonicalPath(tt.in))
		})
	}
}

func TestSessionEventCount(t *testing.T) {
	before := metrics.SessionEventCount(metrics.EventRotation)
	metrics.RecordSessionEvent(metrics.EventRotation)
	require.Equal(t, before+1, metrics.SessionEventCount(metrics.EventRotation))
}

func TestHandlerExposesClientMetrics(t *testing.T) {
	metrics.RecordRequest(http.MethodGet, "/carrito", "200", 10*time.Millisecond)
	metrics.RecordCacheLookup("cart", true)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "storefront_client_requests_total"))
	require.True(t, strings.Contains(body, "storefront_cache_lookups_total"))
}
