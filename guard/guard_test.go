package guard_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cache"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/guard"
	"github.com/jrsteele09/go-storefront/server"
	"github.com/jrsteele09/go-storefront/server/servertest"
	"github.com/jrsteele09/go-storefront/sessions"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/stretchr/testify/require"
)

var demo = users.Credentials{Email: server.DemoUserEmail, Password: server.DemoUserPassword}

type testFixture struct {
	backend *servertest.Backend
	store   *token.Store
	session *sessions.Controller
	cart    *cart.Synchronizer
	guard   *guard.Guard
}

// setupTestFixture builds a client whose store starts with restoredToken, as
// if it had been loaded from storage
func setupTestFixture(t *testing.T, backend *servertest.Backend, restoredToken string) *testFixture {
	t.Helper()
	store := token.NewStore()
	store.Set(restoredToken)
	client := apiclient.New(backend.APIURL(), store, apiclient.WithRetryBackoff(0))
	session := sessions.New(client, store)
	synchronizer := cart.NewSynchronizer(client, session, cache.NewMemoryCache[cart.Cart](time.Minute))
	session.Track(synchronizer)

	return &testFixture{
		backend: backend,
		store:   store,
		session: session,
		cart:    synchronizer,
		guard:   guard.New(client, session, store),
	}
}

// issuedToken logs in with a separate client and returns its token
func issuedToken(t *testing.T, backend *servertest.Backend) string {
	t.Helper()
	other := setupTestFixture(t, backend, "")
	_, err := other.session.Login(context.Background(), demo)
	require.NoError(t, err)
	return other.store.Get()
}

func TestCheckWithoutToken(t *testing.T) {
	f := setupTestFixture(t, servertest.New(t), "")

	require.Equal(t, guard.Unknown, f.guard.State())
	require.Equal(t, guard.Unauthorized, f.guard.Check(context.Background()))
	require.False(t, f.guard.Allowed())
	require.Empty(t, f.backend.Calls())
}

func TestCheckAfterLogin(t *testing.T) {
	f := setupTestFixture(t, servertest.New(t), "")
	ctx := context.Background()

	_, err := f.session.Login(ctx, demo)
	require.NoError(t, err)
	f.backend.ResetCalls()

	require.Equal(t, guard.Authorized, f.guard.Check(ctx))
	require.True(t, f.guard.Allowed())
	require.Empty(t, f.backend.Calls(), "a token from login is already confirmed")
}

func TestCheckProbesRestoredToken(t *testing.T) {
	backend := servertest.New(t)
	f := setupTestFixture(t, backend, issuedToken(t, backend))
	ctx := context.Background()
	backend.ResetCalls()

	require.Equal(t, sessions.Authenticated, f.session.State())
	require.False(t, f.session.Confirmed())

	require.Equal(t, guard.Authorized, f.guard.Check(ctx))
	require.True(t, f.session.Confirmed())
	call, ok := backend.LastCall(http.MethodGet, guard.ProbePath)
	require.True(t, ok)
	require.Equal(t, "limit=1&page=1", call.Query)

	require.Equal(t, guard.Authorized, f.guard.Check(ctx))
	require.Equal(t, 1, backend.CallCount(http.MethodGet, guard.ProbePath), "confirmed tokens are not probed again")
}

func TestCheckRejectsRevokedToken(t *testing.T) {
	backend := servertest.New(t)
	f := setupTestFixture(t, backend, "not-a-real-token")

	require.Equal(t, guard.Unauthorized, f.guard.Check(context.Background()))
	require.False(t, f.store.Present(), "the 401 ended the session")
	require.Equal(t, sessions.Anonymous, f.session.State())
}

func TestCheckFailsClosedOnNetworkError(t *testing.T) {
	backend := servertest.New(t)
	f := setupTestFixture(t, backend, issuedToken(t, backend))
	backend.Fail(http.MethodGet, guard.ProbePath, servertest.Drop())

	require.Equal(t, guard.Unauthorized, f.guard.Check(context.Background()))
	require.True(t, f.store.Present(), "a transport failure does not end the session")
	require.False(t, f.session.Confirmed())
}

func TestUnauthorizedResponseRedirects(t *testing.T) {
	f := setupTestFixture(t, servertest.New(t), "")
	ctx := context.Background()

	_, err := f.session.Login(ctx, demo)
	require.NoError(t, err)
	require.Equal(t, guard.Authorized, f.guard.Check(ctx))

	f.backend.Fail(http.MethodGet, cart.PathCart, servertest.Status(http.StatusUnauthorized, "Token inválido o expirado"))
	_, err = f.cart.FetchCart(ctx)
	require.Error(t, err)

	require.Equal(t, guard.Unauthorized, f.guard.State())
	require.False(t, f.guard.Allowed())
	_, ok := f.cart.Cached(ctx)
	require.False(t, ok)
}

func TestStateNames(t *testing.T) {
	require.Equal(t, "authorized", guard.Authorized.String())
	require.Equal(t, "unauthorized", guard.Unauthorized.String())
	require.Equal(t, "verifying", guard.Verifying.String())
}
