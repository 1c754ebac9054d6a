package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/jrsteele09/go-storefront/server/authsessions"
	fakesessionrepo "github.com/jrsteele09/go-storefront/server/authsessions/repofakes"
	"github.com/jrsteele09/go-storefront/server/revocation"
	"github.com/jrsteele09/go-storefront/server/shoprepo"
	"github.com/jrsteele09/go-storefront/token"
	tokenjwt "github.com/jrsteele09/go-storefront/token/jwt"
	"github.com/jrsteele09/go-storefront/users"
	fakeuserrepo "github.com/jrsteele09/go-storefront/users/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config is the subset of the configuration the backend reads
type Config interface {
	config.EnvConfig
	config.BackendConfig
}

// Server is an in-memory storefront REST backend. It serves the same routes,
// wire names and token rotation behaviour the storefront client expects.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	routes   []string
	config   Config
	users    users.UserRepo
	shop     shoprepo.Repo
	signer   *token.HMACSigner
	tokens   *tokenjwt.Creator
	revoked  revocation.Cache
	sessions authsessions.Repo // Issued tokens, for logout-all
	nowFunc  func() time.Time
}

type Option func(*Server)

func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

func WithShopRepo(repo shoprepo.Repo) Option {
	return func(s *Server) {
		s.shop = repo
	}
}

func WithSessionRepo(repo authsessions.Repo) Option {
	return func(s *Server) {
		s.sessions = repo
	}
}

func WithRevokedTokenCache(cache revocation.Cache) Option {
	return func(s *Server) {
		s.revoked = cache
	}
}

// WithNowTime sets the clock used for token age and expiry checks
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = nowFunc
	}
}

func New(config Config, opts ...Option) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}

	s := &Server{
		env:     config.GetEnv(),
		config:  config,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.users == nil {
		s.users = fakeuserrepo.NewFakeUserRepo()
	}
	if s.shop == nil {
		s.shop = shoprepo.NewInMemoryRepo(s.nowFunc)
	}
	if s.revoked == nil {
		s.revoked = revocation.NewMemoryCache(s.nowFunc)
	}
	if s.sessions == nil {
		s.sessions = fakesessionrepo.NewFakeSessionRepo()
	}
	s.signer = token.NewHMACSigner(config.GetTokenSecret())
	s.tokens = tokenjwt.NewCreator(s.signer, config.GetTokenTTL(), tokenjwt.WithClock(s.nowFunc))

	if err := s.InitialiseSystem(); err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to initialise the system")
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRoute records the route for start-up logging and mounts it on router
func (s *Server) RegisterRoute(router chi.Router, prefix, method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+prefix+pattern)
	router.Method(method, pattern, handler)
}

// Routes returns every registered route as "METHOD /path"
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// issueToken mints an access token for the user and records it as a session
// so logout-all can revoke it later
func (s *Server) issueToken(user *users.User, rotated bool) (string, error) {
	raw, err := s.tokens.CreateAccessToken(user.ID, user.Email)
	if err != nil {
		return "", errors.Wrap(err, "[Server.issueToken] failed to create access token")
	}
	claims, err := tokenjwt.Decode(raw)
	if err != nil {
		return "", errors.Wrap(err, "[Server.issueToken] failed to decode minted token")
	}

	session := &authsessions.SessionData{
		UserID:    user.ID,
		UserEmail: user.Email,
		Timestamp: claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
		Rotated:   rotated,
	}
	if err := s.sessions.Upsert(claims.ID, session); err != nil {
		return "", errors.Wrap(err, "[Server.issueToken] failed to record session")
	}
	return raw, nil
}

func (s *Server) revokeToken(jti string, exp time.Time) {
	if err := s.sessions.Delete(jti); err != nil && !errors.Is(err, authsessions.ErrSessionNotFound) {
		log.Warn().Err(err).Msg("[Server.revokeToken] failed to delete session")
	}
	if err := s.revoked.Add(jti, exp); err != nil {
		log.Warn().Err(err).Msg("[Server.revokeToken] failed to revoke token")
	}
}

// revokeAll revokes every token issued to the user, returning how many were live
func (s *Server) revokeAll(userID string) int {
	removed, err := s.sessions.DeleteByUser(userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("[Server.revokeAll] failed to delete sessions")
	}
	for _, session := range removed {
		if err := s.revoked.Add(session.ID, session.ExpiresAt); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("[Server.revokeAll] failed to revoke token")
		}
	}

	if expired := s.revoked.Cleanup(); expired > 0 {
		log.Debug().Int("count", expired).Msg("[Server.revokeAll] expired revocations dropped")
	}
	if err := s.sessions.DeleteExpiredSessions(s.nowFunc()); err != nil {
		log.Warn().Err(err).Msg("[Server.revokeAll] failed to clean up expired sessions")
	}
	return len(removed)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
