package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/apiclient"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
}

type testFixture struct {
	server   *httptest.Server
	store    *token.Store
	client   *apiclient.Client
	lock     sync.Mutex
	requests []recordedRequest
}

func setupTestFixture(t *testing.T, handler http.HandlerFunc, opts ...apiclient.Option) *testFixture {
	t.Helper()
	f := &testFixture{store: token.NewStore()}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lock.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get(apiclient.HeaderRequestID),
		})
		f.lock.Unlock()
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)

	opts = append([]apiclient.Option{apiclient.WithRetryBackoff(0)}, opts...)
	f.client = apiclient.New(f.server.URL, f.store, opts...)
	return f
}

func (f *testFixture) calls() []recordedRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type widget struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestBearerInjection(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, widget{ID: 1})
	})
	ctx := context.Background()

	_, err := apiclient.Get[widget](ctx, f.client, "/widgets/1", nil)
	require.NoError(t, err)

	f.store.Set("T1")
	_, err = apiclient.Get[widget](ctx, f.client, "/widgets/1", nil)
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 2)
	require.Empty(t, calls[0].Auth)
	require.Equal(t, "Bearer T1", calls[1].Auth)
	require.NotEmpty(t, calls[0].RequestID)
	require.NotEqual(t, calls[0].RequestID, calls[1].RequestID)
}

func TestRotatedToken(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "name": "gizmo", "accessToken": "T2"})
	})

	env, err := apiclient.Post[widget](context.Background(), f.client, "/widgets", widget{Name: "gizmo"}, nil)
	require.NoError(t, err)
	require.Equal(t, "T2", env.RotatedToken)
	require.Equal(t, widget{ID: 3, Name: "gizmo"}, env.Data)
}

func TestUnauthorized(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token expirado"})
	})
	f.store.Set("T1")

	var hookToken string
	hookCalls := 0
	f.client.OnUnauthorized(func(sent string) {
		hookCalls++
		hookToken = sent
	})

	_, err := apiclient.Get[widget](context.Background(), f.client, "/widgets", nil)
	require.Error(t, err)

	var authErr *apperrors.AuthExpiredError
	require.ErrorAs(t, err, &authErr)
	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)
	require.Equal(t, "Token expirado", httpErr.Message)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)

	require.Equal(t, 1, hookCalls)
	require.Equal(t, "T1", hookToken)
	require.Len(t, f.calls(), 1, "401 is never retried")
}

func TestReadRetry(t *testing.T) {
	t.Run("get is retried once on 5xx", func(t *testing.T) {
		attempts := 0
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream"})
				return
			}
			writeJSON(w, http.StatusOK, widget{ID: 9})
		})
		env, err := apiclient.Get[widget](context.Background(), f.client, "/widgets/9", nil)
		require.NoError(t, err)
		require.Equal(t, 9, env.Data.ID)
		require.Len(t, f.calls(), 2)
	})

	t.Run("get gives up after one retry", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": []string{"a", "b"}})
		})
		_, err := apiclient.Get[widget](context.Background(), f.client, "/widgets/9", nil)
		var httpErr *apperrors.HttpError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, "a; b", httpErr.Message)
		require.Len(t, f.calls(), 2)
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "no existe"})
		})
		_, err := apiclient.Get[widget](context.Background(), f.client, "/widgets/9", nil)
		require.Error(t, err)
		require.Len(t, f.calls(), 1)
	})

	t.Run("mutations are never retried", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, nil)
		})
		ctx := context.Background()
		_, err := apiclient.Post[widget](ctx, f.client, "/widgets", widget{}, nil)
		require.Error(t, err)
		_, err = apiclient.Patch[widget](ctx, f.client, "/widgets/1", widget{})
		require.Error(t, err)
		_, err = apiclient.Delete[apiclient.Empty](ctx, f.client, "/widgets/1")
		require.Error(t, err)
		require.Len(t, f.calls(), 3)
	})
}

func TestInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html", body: "<html>gateway</html>"},
		{name: "empty", body: ""},
		{name: "null", body: "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			})
			ctx := context.Background()

			_, err := apiclient.Post[widget](ctx, f.client, "/widgets", widget{}, nil)
			require.ErrorIs(t, err, apiclient.ErrInvalidBody)
			require.Contains(t, err.Error(), "POST /widgets")

			env, err := apiclient.Delete[apiclient.Empty](ctx, f.client, "/widgets/1")
			require.NoError(t, err, "bodies of Empty endpoints are not read")
			require.NotNil(t, env)
		})
	}
}

func TestNetworkErrors(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {})
		f.server.Close()

		_, err := apiclient.Post[widget](context.Background(), f.client, "/widgets", widget{}, nil)
		var netErr *apperrors.NetworkError
		require.ErrorAs(t, err, &netErr)
		require.Equal(t, "POST /widgets", netErr.Op)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, apiclient.WithTimeout(20*time.Millisecond), apiclient.WithReadRetries(0))
		defer close(release)

		_, err := apiclient.Get[widget](context.Background(), f.client, "/slow", nil)
		var netErr *apperrors.NetworkError
		require.ErrorAs(t, err, &netErr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestGetList(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "bare array", body: []widget{{ID: 1}, {ID: 2}}, want: 2},
		{name: "data object", body: map[string]any{"data": []widget{{ID: 1}}, "total": 1}, want: 1},
		{name: "null", body: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			env, err := apiclient.GetList[widget](context.Background(), f.client, "/widgets", nil)
			require.NoError(t, err)
			require.Len(t, env.Data, tt.want)
		})
	}

	t.Run("unexpected shape", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"items": []widget{}})
		})
		_, err := apiclient.GetList[widget](context.Background(), f.client, "/widgets", nil)
		require.ErrorIs(t, err, apiclient.ErrUnexpectedShape)
	})
}

func TestRateLimit(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, widget{})
	}, apiclient.WithRateLimit(1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := apiclient.Get[widget](ctx, f.client, "/widgets", nil)
	require.NoError(t, err)
	_, err = apiclient.Get[widget](ctx, f.client, "/widgets", nil)
	var netErr *apperrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Len(t, f.calls(), 1)
}
