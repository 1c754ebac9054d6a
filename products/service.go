package products

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cache"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const PathProducts = "/productos"

// TokenRotator adopts tokens embedded in responses
type TokenRotator interface {
	RotateToken(token string)
}

type ListParams struct {
	Search   string
	Category string
	Page     int
	Limit    int
}

func (p ListParams) Query() url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Category != "" {
		q.Set("categoria", p.Category)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// Service is the read-only catalog binding. List results are cached per query.
type Service struct {
	client  *apiclient.Client
	rotator TokenRotator
	cache   cache.Cache[[]Product]
}

func New(client *apiclient.Client, rotator TokenRotator, c cache.Cache[[]Product]) *Service {
	return &Service{
		client:  client,
		rotator: rotator,
		cache:   c,
	}
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Product, error) {
	query := params.Query()
	key := "list?" + query.Encode()

	if cached, err := s.cache.Get(ctx, key); err == nil {
		metrics.RecordCacheLookup("products", true)
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Msg("[Products.List] cache read failed")
	}
	metrics.RecordCacheLookup("products", false)

	env, err := apiclient.GetList[Product](ctx, s.client, PathProducts, query)
	if errors.Is(err, apiclient.ErrUnexpectedShape) {
		log.Warn().Err(err).Msg("[Products.List] unexpected response, showing an empty catalog")
		return []Product{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Products.List]")
	}
	s.rotator.RotateToken(env.RotatedToken)

	if err := s.cache.Set(ctx, key, env.Data); err != nil {
		log.Warn().Err(err).Msg("[Products.List] cache write failed")
	}
	return env.Data, nil
}

func (s *Service) Get(ctx context.Context, id int) (*Product, error) {
	env, err := apiclient.Get[Product](ctx, s.client, fmt.Sprintf("%s/%d", PathProducts, id), nil)
	if err != nil {
		var httpErr *apperrors.HttpError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "product %d", id)
		}
		return nil, errors.Wrap(err, "[Products.Get]")
	}
	s.rotator.RotateToken(env.RotatedToken)
	return &env.Data, nil
}

// Reset drops cached listings
func (s *Service) Reset() {
	if err := s.cache.Flush(context.Background()); err != nil {
		log.Warn().Err(err).Msg("[Products.Reset] cache flush failed")
	}
}
