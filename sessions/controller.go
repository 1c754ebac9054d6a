package sessions

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-storefront/apiclient"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/metrics"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	PathLogin     = "/auth/login"
	PathRegister  = "/auth/register"
	PathLogout    = "/auth/logout"
	PathLogoutAll = "/auth/logout-all"
	PathProfile   = "/auth/profile"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Expiring // Token is past its exp locally, or a 401 teardown is in progress
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expiring:
		return "expiring"
	}
	return "unknown"
}

// Resettable is a cache whose content belongs to the current session
type Resettable interface {
	Reset()
}

// Controller owns the session lifecycle: login, registration, logout and
// token rotation. Dependents are reset whenever the session ends.
type Controller struct {
	client *apiclient.Client
	store  *token.Store

	lock       sync.RWMutex
	state      State
	confirmed  bool // The backend accepted the current token
	user       *users.User
	dependents []Resettable
}

func New(client *apiclient.Client, store *token.Store) *Controller {
	c := &Controller{
		client: client,
		store:  store,
		state:  Anonymous,
	}
	if store.Present() {
		c.state = Authenticated
	}
	client.OnUnauthorized(c.handleUnauthorized)
	return c
}

// Track registers caches to be reset at the end of the session
func (c *Controller) Track(dependents ...Resettable) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.dependents = append(c.dependents, dependents...)
}

func (c *Controller) State() State {
	c.lock.RLock()
	state := c.state
	c.lock.RUnlock()

	if state == Authenticated && c.store.Expired() {
		return Expiring
	}
	return state
}

func (c *Controller) IsAuthenticated() bool {
	return c.store.Present()
}

// Confirmed reports whether the backend has accepted the current token.
// A token restored from storage is unconfirmed until a call succeeds with it.
func (c *Controller) Confirmed() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.confirmed && c.store.Present()
}

// Confirm marks the current token as accepted by the backend
func (c *Controller) Confirm() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.store.Present() {
		c.confirmed = true
		c.state = Authenticated
	}
}

// User returns the user of the current session, nil when anonymous
func (c *Controller) User() *users.User {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// UserID identifies the session's user, from the token when it carries a sub
func (c *Controller) UserID() string {
	if identity := c.store.Identity(); identity != nil && identity.UserID != "" {
		return identity.UserID
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.user != nil {
		return c.user.ID
	}
	return ""
}

func (c *Controller) Login(ctx context.Context, creds users.Credentials) (*users.User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	user, err := c.authenticate(ctx, PathLogin, creds)
	if err != nil {
		return nil, errors.Wrap(err, "[Controller.Login]")
	}
	metrics.RecordSessionEvent(metrics.EventLogin)
	return user, nil
}

func (c *Controller) Register(ctx context.Context, data users.RegisterData) (*users.User, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	user, err := c.authenticate(ctx, PathRegister, data)
	if err != nil {
		return nil, errors.Wrap(err, "[Controller.Register]")
	}
	metrics.RecordSessionEvent(metrics.EventRegister)
	return user, nil
}

func (c *Controller) authenticate(ctx context.Context, path string, body any) (*users.User, error) {
	c.lock.Lock()
	previous := c.state
	c.state = Authenticating
	c.lock.Unlock()

	env, err := apiclient.Post[users.AuthResponse](ctx, c.client, path, body, nil)
	if err == nil && env.Data.AccessToken == "" {
		err = errors.New("response carried no access token")
	}
	var authErr *apperrors.AuthExpiredError
	if errors.As(err, &authErr) {
		// Rejected credentials, not an expired session
		err = authErr.HttpError
	}
	if err != nil {
		c.lock.Lock()
		if c.state == Authenticating {
			c.state = previous
		}
		c.lock.Unlock()
		return nil, err
	}

	// A new identity must not see the previous user's cached data
	c.resetDependents()

	user := env.Data.User
	c.store.Set(env.Data.AccessToken)
	if identity := c.store.Identity(); identity != nil && user.ID == "" {
		user.ID = identity.UserID
	}

	c.lock.Lock()
	c.user = &user
	c.state = Authenticated
	c.confirmed = true
	c.lock.Unlock()

	log.Info().Str("email", user.Email).Msg("[Controller] session started")
	u := user
	return &u, nil
}

// Logout ends the session. The server call is best-effort: the local session
// is always cleared and no error is returned for a failed server call.
func (c *Controller) Logout(ctx context.Context) {
	c.endSession(ctx, PathLogout)
}

// LogoutAll revokes every session of the user on the server, then clears locally
func (c *Controller) LogoutAll(ctx context.Context) {
	c.endSession(ctx, PathLogoutAll)
}

func (c *Controller) endSession(ctx context.Context, path string) {
	if c.store.Present() {
		if _, err := apiclient.Post[apiclient.Empty](ctx, c.client, path, nil, nil); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("[Controller.Logout] server logout failed, clearing local session anyway")
		}
	}
	c.teardown(Anonymous)
	metrics.RecordSessionEvent(metrics.EventLogout)
}

// RotateToken adopts a token embedded in a routine response. Rotations that
// arrive after the session ended are dropped so they cannot revive it.
func (c *Controller) RotateToken(newToken string) {
	if newToken == "" {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state == Anonymous || !c.store.Present() {
		log.Debug().Msg("[Controller.RotateToken] ignoring rotation outside an active session")
		return
	}
	if c.store.Get() == newToken {
		return
	}
	c.store.Set(newToken)
	metrics.RecordSessionEvent(metrics.EventRotation)
}

// Profile fetches the user behind the current token
func (c *Controller) Profile(ctx context.Context) (*users.User, error) {
	if !c.store.Present() {
		return nil, apperrors.ErrNotAuthenticated
	}
	env, err := apiclient.Get[users.User](ctx, c.client, PathProfile, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Controller.Profile]")
	}
	c.RotateToken(env.RotatedToken)

	user := env.Data
	c.lock.Lock()
	if c.state == Authenticated {
		c.user = &user
		c.confirmed = true
	}
	c.lock.Unlock()
	return &user, nil
}

// handleUnauthorized tears the session down on a 401. A 401 for a request
// sent with another token, or with none, belongs to an older session and is
// ignored.
func (c *Controller) handleUnauthorized(sentToken string) {
	current := c.store.Get()
	if current != "" && current != sentToken {
		log.Debug().Msg("[Controller] 401 for a superseded token ignored")
		return
	}
	log.Info().Msg("[Controller] session expired")
	c.setState(Expiring)
	c.teardown(Anonymous)
}

func (c *Controller) teardown(next State) {
	c.store.Clear()
	c.lock.Lock()
	c.user = nil
	c.confirmed = false
	c.state = next
	c.lock.Unlock()
	c.resetDependents()
}

func (c *Controller) resetDependents() {
	c.lock.RLock()
	dependents := append([]Resettable(nil), c.dependents...)
	c.lock.RUnlock()
	for _, d := range dependents {
		d.Reset()
	}
}

func (c *Controller) setState(s State) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = s
}
