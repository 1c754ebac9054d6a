package orders

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cache"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	PathOrders   = "/pedidos"
	PathMyOrders = "/pedidos/mis-pedidos"
)

type Session interface {
	IsAuthenticated() bool
	UserID() string
	RotateToken(token string)
}

// Service is the order history binding. The list is cached per user.
type Service struct {
	client  *apiclient.Client
	session Session
	cache   cache.Cache[[]Order]

	lock       sync.Mutex
	generation uint64
	key        string
}

func New(client *apiclient.Client, session Session, c cache.Cache[[]Order]) *Service {
	return &Service{
		client:  client,
		session: session,
		cache:   c,
	}
}

func (s *Service) List(ctx context.Context) ([]Order, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	key := s.cacheKey()

	if cached, err := s.cache.Get(ctx, key); err == nil {
		metrics.RecordCacheLookup("orders", true)
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Msg("[Orders.List] cache read failed")
	}
	metrics.RecordCacheLookup("orders", false)

	gen := s.currentGeneration()
	env, err := apiclient.GetList[Order](ctx, s.client, PathMyOrders, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Orders.List]")
	}
	s.session.RotateToken(env.RotatedToken)

	if gen == s.currentGeneration() {
		if err := s.cache.Set(ctx, key, env.Data); err != nil {
			log.Warn().Err(err).Msg("[Orders.List] cache write failed")
		}
	}
	return env.Data, nil
}

func (s *Service) Get(ctx context.Context, id int) (*Order, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	env, err := apiclient.Get[Order](ctx, s.client, fmt.Sprintf("%s/%d", PathOrders, id), nil)
	if err != nil {
		var httpErr *apperrors.HttpError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "order %d", id)
		}
		return nil, errors.Wrap(err, "[Orders.Get]")
	}
	s.session.RotateToken(env.RotatedToken)
	return &env.Data, nil
}

// Invalidate drops the cached list so a new order shows up on the next read
func (s *Service) Invalidate(ctx context.Context) {
	s.lock.Lock()
	s.generation++
	key := s.key
	s.lock.Unlock()

	if key == "" {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Msg("[Orders.Invalidate] cache delete failed")
	}
}

// Cached returns the cached list without fetching
func (s *Service) Cached(ctx context.Context) ([]Order, bool) {
	s.lock.Lock()
	key := s.key
	s.lock.Unlock()
	if key == "" {
		return nil, false
	}
	list, err := s.cache.Get(ctx, key)
	return list, err == nil
}

func (s *Service) Reset() {
	s.Invalidate(context.Background())
	s.lock.Lock()
	s.key = ""
	s.lock.Unlock()
}

func (s *Service) currentGeneration() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.generation
}

func (s *Service) cacheKey() string {
	key := s.session.UserID()
	if key == "" {
		key = "me"
	}
	s.lock.Lock()
	s.key = key
	s.lock.Unlock()
	return key
}
