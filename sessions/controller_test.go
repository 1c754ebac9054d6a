package sessions_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-storefront/apiclient"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/sessions"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	resets int
}

func (f *fakeCache) Reset() { f.resets++ }

type testFixture struct {
	server     *httptest.Server
	store      *token.Store
	client     *apiclient.Client
	controller *sessions.Controller
	cache      *fakeCache

	lock  sync.Mutex
	paths []string
}

func setupTestFixture(t *testing.T, handler http.HandlerFunc) *testFixture {
	t.Helper()
	f := &testFixture{store: token.NewStore(), cache: &fakeCache{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lock.Lock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)
		f.lock.Unlock()
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)

	f.client = apiclient.New(f.server.URL, f.store, apiclient.WithRetryBackoff(0))
	f.controller = sessions.New(f.client, f.store)
	f.controller.Track(f.cache)
	return f
}

func (f *testFixture) calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.paths...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func authOK(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case sessions.PathLogin, sessions.PathRegister:
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "T1",
			"user":        map[string]any{"email": "a@b.com", "nombre": "Ana", "estaActivo": true},
		})
	case sessions.PathProfile:
		writeJSON(w, http.StatusOK, map[string]any{"id": "1", "email": "a@b.com", "nombre": "Ana", "accessToken": "T2"})
	case sessions.PathLogout, sessions.PathLogoutAll:
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
	default:
		writeJSON(w, http.StatusNotFound, nil)
	}
}

var creds = users.Credentials{Email: "a@b.com", Password: "secret1"}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t, authOK)
		require.Equal(t, sessions.Anonymous, f.controller.State())

		user, err := f.controller.Login(context.Background(), creds)
		require.NoError(t, err)
		require.Equal(t, "a@b.com", user.Email)
		require.Equal(t, "T1", f.store.Get())
		require.Equal(t, sessions.Authenticated, f.controller.State())
		require.True(t, f.controller.IsAuthenticated())
		require.Equal(t, "Ana", f.controller.User().FirstName)
		require.Equal(t, 1, f.cache.resets)
	})

	t.Run("invalid credentials never reach the network", func(t *testing.T) {
		f := setupTestFixture(t, authOK)
		_, err := f.controller.Login(context.Background(), users.Credentials{Email: "nope"})
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
		require.NotEmpty(t, ve.Field("email"))
		require.NotEmpty(t, ve.Field("password"))
		require.Empty(t, f.calls())
	})

	t.Run("rejected credentials", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Credenciales inválidas"})
		})
		_, err := f.controller.Login(context.Background(), creds)
		var httpErr *apperrors.HttpError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, "Credenciales inválidas", apperrors.UserMessage(err))
		require.Equal(t, sessions.Anonymous, f.controller.State())
		require.False(t, f.store.Present())
	})

	t.Run("response without token", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{}})
		})
		_, err := f.controller.Login(context.Background(), creds)
		require.Error(t, err)
		require.Equal(t, sessions.Anonymous, f.controller.State())
	})
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t, authOK)
	data := users.RegisterData{
		FirstName: "Ana",
		LastName:  "Gómez",
		Email:     "a@b.com",
		Password:  "secret1",
		Phone:     "555123456",
		Address:   "Calle Falsa 123",
	}
	_, err := f.controller.Register(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "T1", f.store.Get())
	require.Equal(t, []string{"POST " + sessions.PathRegister}, f.calls())

	data.Password = "123"
	_, err = f.controller.Register(context.Background(), data)
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, f.calls(), 1)
}

func TestLogout(t *testing.T) {
	t.Run("clears the session", func(t *testing.T) {
		f := setupTestFixture(t, authOK)
		_, err := f.controller.Login(context.Background(), creds)
		require.NoError(t, err)

		f.controller.Logout(context.Background())
		require.False(t, f.store.Present())
		require.Nil(t, f.controller.User())
		require.Equal(t, sessions.Anonymous, f.controller.State())
		require.Equal(t, 2, f.cache.resets)
		require.Contains(t, f.calls(), "POST "+sessions.PathLogout)
	})

	t.Run("network failure still clears locally", func(t *testing.T) {
		f := setupTestFixture(t, authOK)
		_, err := f.controller.Login(context.Background(), creds)
		require.NoError(t, err)

		f.server.Close()
		f.controller.Logout(context.Background())
		require.False(t, f.store.Present())
		require.Equal(t, sessions.Anonymous, f.controller.State())
		require.Equal(t, 2, f.cache.resets)
	})

	t.Run("server error still clears locally", func(t *testing.T) {
		f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == sessions.PathLogoutAll {
				writeJSON(w, http.StatusInternalServerError, nil)
				return
			}
			authOK(w, r)
		})
		_, err := f.controller.Login(context.Background(), creds)
		require.NoError(t, err)

		f.controller.LogoutAll(context.Background())
		require.False(t, f.store.Present())
	})

	t.Run("anonymous logout makes no call", func(t *testing.T) {
		f := setupTestFixture(t, authOK)
		f.controller.Logout(context.Background())
		require.Empty(t, f.calls())
	})
}

func TestRotateToken(t *testing.T) {
	f := setupTestFixture(t, authOK)

	f.controller.RotateToken("T9")
	require.False(t, f.store.Present(), "rotation cannot start a session")

	_, err := f.controller.Login(context.Background(), creds)
	require.NoError(t, err)

	f.controller.RotateToken("")
	require.Equal(t, "T1", f.store.Get())

	f.controller.RotateToken("T2")
	require.Equal(t, "T2", f.store.Get())
	require.Equal(t, sessions.Authenticated, f.controller.State())
}

func TestProfile(t *testing.T) {
	f := setupTestFixture(t, authOK)

	_, err := f.controller.Profile(context.Background())
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

	_, err = f.controller.Login(context.Background(), creds)
	require.NoError(t, err)

	user, err := f.controller.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", user.ID)
	require.Equal(t, "T2", f.store.Get(), "profile response rotated the token")
}

func TestUnauthorizedTeardown(t *testing.T) {
	var expired atomic.Bool
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if expired.Load() && r.URL.Path == sessions.PathProfile {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		authOK(w, r)
	})
	_, err := f.controller.Login(context.Background(), creds)
	require.NoError(t, err)

	expired.Store(true)
	_, err = f.controller.Profile(context.Background())
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	require.False(t, f.store.Present())
	require.Equal(t, sessions.Anonymous, f.controller.State())
	require.Equal(t, 2, f.cache.resets)
}

func TestUnauthorizedForAnonymousRequestAfterLogin(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/productos" {
			close(arrived)
			<-release
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token requerido"})
			return
		}
		authOK(w, r)
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := apiclient.Get[apiclient.Empty](ctx, f.client, "/productos", nil)
		done <- err
	}()
	<-arrived

	_, err := f.controller.Login(ctx, creds)
	require.NoError(t, err)
	close(release)
	require.ErrorIs(t, <-done, apperrors.ErrSessionExpired)

	require.Equal(t, "T1", f.store.Get(), "a request sent without a token cannot end the new session")
	require.Equal(t, sessions.Authenticated, f.controller.State())
	require.Equal(t, 1, f.cache.resets, "only the login reset the dependents")
}
