package guard

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/rs/zerolog/log"
)

// ProbePath is a cheap authenticated read used to check a token
const ProbePath = "/productos"

type State int

const (
	Unknown State = iota
	Verifying
	Authorized
	Unauthorized
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Verifying:
		return "verifying"
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	}
	return "invalid"
}

type Session interface {
	IsAuthenticated() bool
	Confirmed() bool
	Confirm()
	RotateToken(token string)
}

// Guard gates protected content on the session. It fails closed: any
// doubt about the token ends in Unauthorized.
type Guard struct {
	client  *apiclient.Client
	session Session

	lock  sync.Mutex
	state State
}

// New creates a guard that follows the token held by store
func New(client *apiclient.Client, session Session, store *token.Store) *Guard {
	g := &Guard{
		client:  client,
		session: session,
		state:   Unknown,
	}
	store.Subscribe(g.tokenChanged)
	return g
}

func (g *Guard) State() State {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.state
}

// Allowed reports whether protected content may be rendered
func (g *Guard) Allowed() bool {
	return g.State() == Authorized
}

// Check decides whether protected content may be rendered, probing the
// backend when the token has not been confirmed yet
func (g *Guard) Check(ctx context.Context) State {
	if !g.session.IsAuthenticated() {
		return g.setState(Unauthorized)
	}
	if g.session.Confirmed() {
		return g.setState(Authorized)
	}

	g.setState(Verifying)
	query := url.Values{"page": {"1"}, "limit": {"1"}}
	resp, err := g.client.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: ProbePath, Query: query})
	if err != nil {
		// A 401 has already torn the session down through the client hooks
		log.Info().Err(err).Msg("[Guard.Check] token rejected, redirecting to login")
		return g.setState(Unauthorized)
	}
	g.session.RotateToken(resp.RotatedToken)
	if !g.session.IsAuthenticated() {
		return g.setState(Unauthorized)
	}
	g.session.Confirm()
	return g.setState(Authorized)
}

func (g *Guard) tokenChanged(tok string) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if tok == "" {
		g.state = Unauthorized
	}
}

func (g *Guard) setState(s State) State {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.state = s
	return s
}
