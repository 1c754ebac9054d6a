package token

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront/token/jwt"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Store.Token when no session is active
var ErrNoToken = errors.New("no access token")

// Listener is notified after every token change. token is empty after a clear.
type Listener func(token string)

// Identity is the user information carried inside the bearer
type Identity struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Store is the single holder of the bearer token for a session.
// Readers take the token just-in-time per request, so a Set is visible to
// the next outbound request as soon as it returns.
type Store struct {
	mu        sync.RWMutex
	token     string
	identity  *Identity
	listeners []Listener
	nowFunc   func() time.Time
}

var _ oauth2.TokenSource = (*Store)(nil)

type StoreOption func(*Store)

// WithStoreNowTime overrides the clock used to report token validity
func WithStoreNowTime(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set replaces the current token. An empty token clears the store.
func (s *Store) Set(rawToken string) {
	var identity *Identity
	if rawToken != "" {
		claims, err := jwt.Decode(rawToken)
		if err != nil {
			// Opaque tokens are still valid bearers, they just carry no identity
			log.Debug().Err(err).Msg("[Store.Set] token is not a decodable JWT")
		} else {
			identity = &Identity{
				UserID:    claims.Subject,
				Email:     claims.Email,
				ExpiresAt: claims.ExpiresAt,
			}
		}
	}

	s.mu.Lock()
	changed := s.token != rawToken
	s.token = rawToken
	s.identity = identity
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(rawToken)
	}
}

// Clear removes the token
func (s *Store) Clear() {
	s.Set("")
}

// Get returns the raw bearer, empty when no session is active
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Present reports whether a token is held
func (s *Store) Present() bool {
	return s.Get() != ""
}

// Identity returns the identity decoded from the current token, nil if none
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// Token implements oauth2.TokenSource
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return nil, ErrNoToken
	}
	tok := &oauth2.Token{
		AccessToken: s.token,
		TokenType:   "Bearer",
	}
	if s.identity != nil {
		tok.Expiry = s.identity.ExpiresAt
	}
	return tok, nil
}

// Expired reports whether the held token is past its exp claim.
// Tokens without an exp never expire locally.
func (s *Store) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil || s.identity.ExpiresAt.IsZero() {
		return false
	}
	return s.nowFunc().After(s.identity.ExpiresAt)
}

// Subscribe registers l to be called after every token change
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}
