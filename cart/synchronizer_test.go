package cart_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cache"
	"github.com/jrsteele09/go-storefront/cart"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/server"
	"github.com/jrsteele09/go-storefront/server/servertest"
	"github.com/jrsteele09/go-storefront/sessions"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *servertest.Backend
	store   *token.Store
	session *sessions.Controller
	sync    *cart.Synchronizer
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := servertest.New(t)
	store := token.NewStore()
	client := apiclient.New(backend.APIURL(), store, apiclient.WithRetryBackoff(0))
	session := sessions.New(client, store)
	synchronizer := cart.NewSynchronizer(client, session, cache.NewMemoryCache[cart.Cart](time.Minute))
	session.Track(synchronizer)

	return &testFixture{
		backend: backend,
		store:   store,
		session: session,
		sync:    synchronizer,
	}
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.session.Login(context.Background(), users.Credentials{
		Email:    server.DemoUserEmail,
		Password: server.DemoUserPassword,
	})
	require.NoError(t, err)
	f.backend.ResetCalls()
}

func TestFetchCartRequiresSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.sync.FetchCart(context.Background())
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	require.ErrorIs(t, f.sync.AddItem(context.Background(), 42, 1), apperrors.ErrNotAuthenticated)
	require.Empty(t, f.backend.Calls())
}

func TestAddItemDiscoversCartOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	_, known := f.sync.CartID()
	require.False(t, known)

	require.NoError(t, f.sync.AddItem(ctx, 42, 1))
	calls := f.backend.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "GET /carrito", calls[0].Method+" "+calls[0].Path)
	require.Equal(t, "POST /carrito/item", calls[1].Method+" "+calls[1].Path)

	cartID, known := f.sync.CartID()
	require.True(t, known)
	require.NotZero(t, cartID)

	require.NoError(t, f.sync.AddItem(ctx, 42, 2))
	require.Equal(t, 1, f.backend.CallCount(http.MethodGet, cart.PathCart), "cart id is already known")
	require.Equal(t, 2, f.backend.CallCount(http.MethodPost, cart.PathCartItem))

	c, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, f.backend.CallCount(http.MethodGet, cart.PathCart), "mutation invalidated the cache")
	require.Len(t, c.Items, 1)
	require.Equal(t, 3, c.Items[0].Quantity)
	require.Equal(t, "149.7", c.Total().String())
}

func TestFetchCartServedFromCache(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	first, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)
	second, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.backend.CallCount(http.MethodGet, cart.PathCart))

	cached, ok := f.sync.Cached(ctx)
	require.True(t, ok)
	require.Equal(t, first.ID, cached.ID)
}

func TestUpdateItemQuantity(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.sync.AddItem(ctx, 3, 1))
	c, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)
	itemID := c.Items[0].ID
	f.backend.ResetCalls()

	for _, quantity := range []int{0, -1} {
		err = f.sync.UpdateItemQuantity(ctx, itemID, quantity)
		var validationErr *apperrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
		require.NotEmpty(t, validationErr.Field("cantidad"))
	}
	require.Empty(t, f.backend.Calls(), "rejected locally")

	require.NoError(t, f.sync.UpdateItemQuantity(ctx, itemID, 4))
	c, err = f.sync.FetchCart(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, c.Items[0].Quantity)

	require.NoError(t, f.sync.RemoveItem(ctx, itemID))
	c, err = f.sync.FetchCart(ctx)
	require.NoError(t, err)
	require.True(t, c.Empty())

	err = f.sync.RemoveItem(ctx, itemID)
	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestClearCartIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.sync.AddItem(ctx, 1, 1))
	require.NoError(t, f.sync.ClearCart(ctx))
	require.NoError(t, f.sync.ClearCart(ctx))

	f.backend.Fail(http.MethodDelete, cart.PathCartClear, servertest.Status(http.StatusNotFound, "Carrito no encontrado"))
	require.NoError(t, f.sync.ClearCart(ctx))

	c, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)
	require.True(t, c.Empty())
}

func TestRotatedTokenUsedOnNextRequest(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()
	original := f.store.Get()

	f.backend.Advance(servertest.RotateAfter + time.Second)
	_, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)

	rotated := f.store.Get()
	require.NotEmpty(t, rotated)
	require.NotEqual(t, original, rotated)

	require.NoError(t, f.sync.AddItem(ctx, 42, 1))
	call, ok := f.backend.LastCall(http.MethodPost, cart.PathCartItem)
	require.True(t, ok)
	require.Equal(t, "Bearer "+rotated, call.Authorization)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.sync.AddItem(ctx, 42, 1))
	f.backend.Fail(http.MethodGet, cart.PathCart, servertest.Status(http.StatusUnauthorized, "Token inválido o expirado"))

	_, err := f.sync.FetchCart(ctx)
	var authErr *apperrors.AuthExpiredError
	require.ErrorAs(t, err, &authErr)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)

	require.False(t, f.store.Present())
	require.Equal(t, sessions.Anonymous, f.session.State())
	_, ok := f.sync.Cached(ctx)
	require.False(t, ok)
	_, known := f.sync.CartID()
	require.False(t, known)
}

func TestLogoutClearsCartWhenServerUnreachable(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.sync.FetchCart(ctx)
	require.NoError(t, err)
	_, ok := f.sync.Cached(ctx)
	require.True(t, ok)

	f.backend.Fail(http.MethodPost, sessions.PathLogout, servertest.Drop())
	f.session.Logout(ctx)

	require.Equal(t, 1, f.backend.CallCount(http.MethodPost, sessions.PathLogout), "mutations are not retried")
	require.False(t, f.store.Present())
	_, ok = f.sync.Cached(ctx)
	require.False(t, ok)
	_, err = f.sync.FetchCart(ctx)
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestConcurrentFetchesShareOneRequest(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	f.backend.Fail(http.MethodGet, cart.PathCart, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		f.backend.Backend.ServeHTTP(w, r)
	})

	const fetchers = 5
	start := make(chan struct{})
	errs := make(chan error, fetchers)
	var wg sync.WaitGroup
	for i := 0; i < fetchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.sync.FetchCart(ctx)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.backend.CallCount(http.MethodGet, cart.PathCart))
}

func TestInvalidationDuringFetchIsNotOverwritten(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	arrived := make(chan struct{})
	release := make(chan struct{})
	f.backend.Fail(http.MethodGet, cart.PathCart, func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		f.backend.Backend.ServeHTTP(w, r)
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.sync.FetchCart(ctx)
		done <- err
	}()

	<-arrived
	f.sync.Invalidate(ctx)
	close(release)
	require.NoError(t, <-done)

	_, ok := f.sync.Cached(ctx)
	require.False(t, ok, "a fetch that raced an invalidation must not repopulate the cache")
}

type cartOp struct {
	Kind     int // 0 add, 1 update, 2 remove
	Product  int // index into the catalog
	Line     int // index into the current lines, for update and remove
	Quantity int
}

func genCartOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.IntRange(0, len(server.DefaultCatalog())-1),
		gen.IntRange(0, 9),
		gen.IntRange(1, 6),
	).Map(func(values []interface{}) cartOp {
		return cartOp{Kind: values[0].(int), Product: values[1].(int), Line: values[2].(int), Quantity: values[3].(int)}
	})
}

func TestMutationSequenceKeepsTotal(t *testing.T) {
	catalog := server.DefaultCatalog()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("total equals the sum of price times quantity after every sequence", prop.ForAll(
		func(ops []cartOp) string {
			f := setupTestFixture(t)
			f.login(t)
			ctx := context.Background()
			quantities := map[int]int{} // product id -> units the backend should hold

			for _, op := range ops {
				product := catalog[op.Product]
				switch op.Kind {
				case 0:
					err := f.sync.AddItem(ctx, product.ID, op.Quantity)
					if quantities[product.ID]+op.Quantity > product.Stock {
						if !isBadRequest(err) {
							return "add beyond stock was accepted"
						}
						continue
					}
					if err != nil {
						return "add failed: " + err.Error()
					}
					quantities[product.ID] += op.Quantity
				default:
					c, err := f.sync.FetchCart(ctx)
					if err != nil {
						return "fetch failed: " + err.Error()
					}
					if c.Empty() {
						continue
					}
					line := c.Items[op.Line%len(c.Items)]
					if op.Kind == 2 {
						if err := f.sync.RemoveItem(ctx, line.ID); err != nil {
							return "remove failed: " + err.Error()
						}
						delete(quantities, line.ProductID)
						continue
					}
					if err := f.sync.UpdateItemQuantity(ctx, line.ID, op.Quantity); err != nil {
						return "update failed: " + err.Error()
					}
					quantities[line.ProductID] = op.Quantity
				}
			}

			c, err := f.sync.FetchCart(ctx)
			if err != nil {
				return "final fetch failed: " + err.Error()
			}
			if len(c.Items) != len(quantities) {
				return "line count differs from the applied mutations"
			}
			expected := decimal.Zero
			for _, product := range catalog {
				expected = expected.Add(product.Price.Mul(decimal.NewFromInt(int64(quantities[product.ID]))))
			}
			for _, item := range c.Items {
				if item.Quantity != quantities[item.ProductID] {
					return "quantity differs from the applied mutations"
				}
			}
			if !c.Total().Equal(expected) {
				return "total " + c.Total().String() + " != " + expected.String()
			}
			return ""
		},
		gen.SliceOfN(30, genCartOp()),
	))

	properties.TestingRun(t)
}

func isBadRequest(err error) bool {
	var httpErr *apperrors.HttpError
	return apperrors.As(err, &httpErr) && httpErr.Status == http.StatusBadRequest
}
