package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultReadRetries = 1

	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// UnauthorizedHook is called synchronously for every 401 response, before the
// error is returned to the caller. sentToken is the bearer the request carried,
// empty if it was sent unauthenticated.
type UnauthorizedHook func(sentToken string)

// Client dispatches requests to the storefront REST API.
// The bearer is read from the token source just before each request is sent.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokens       oauth2.TokenSource
	timeout      time.Duration
	readRetries  int
	retryBackoff time.Duration
	limiter      *rate.Limiter

	hooksLock sync.RWMutex
	hooks     []UnauthorizedHook
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithReadRetries sets how many times a failed GET is retried
func WithReadRetries(n int) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.readRetries = n
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithRateLimit caps outbound requests per second. rps <= 0 leaves the client unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{},
		tokens:       tokens,
		timeout:      DefaultTimeout,
		readRetries:  DefaultReadRetries,
		retryBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized registers a hook for 401 responses
func (c *Client) OnUnauthorized(h UnauthorizedHook) {
	c.hooksLock.Lock()
	defer c.hooksLock.Unlock()
	c.hooks = append(c.hooks, h)
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call. Body is JSON encoded when not nil.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response is a 2xx response
type Response struct {
	Status       int
	Body         []byte
	RotatedToken string
}

// Do sends req. GET requests are retried on transient failures, nothing else is.
// Errors are *NetworkError, *HttpError or *AuthExpiredError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.Do] failed to encode request body")
		}
	}

	attempts := 1
	if req.Method == http.MethodGet {
		attempts += c.readRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.RecordRetry(req.Path)
			log.Warn().Err(lastErr).Str("path", req.Path).Int("attempt", attempt).Msg("[Client.Do] retrying read")
			if err := sleep(ctx, c.retryBackoff); err != nil {
				return nil, &apperrors.NetworkError{Op: req.Method + " " + req.Path, Err: err}
			}
		}

		resp, err := c.send(ctx, req, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, req Request, payload []byte) (*Response, error) {
	op := req.Method + " " + req.Path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &apperrors.NetworkError{Op: op, Err: err}
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.send] failed to build request %s", op)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(HeaderRequestID, uuid.New().String())

	sentToken := c.sign(httpReq)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordRequest(req.Method, req.Path, "network", time.Since(start))
		log.Debug().Err(err).Str("op", op).Msg("[Client.send] transport failure")
		return nil, &apperrors.NetworkError{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	metrics.RecordRequest(req.Method, req.Path, strconv.Itoa(httpResp.StatusCode), time.Since(start))
	if err != nil {
		return nil, &apperrors.NetworkError{Op: op, Err: err}
	}

	log.Debug().Str("op", op).Int("status", httpResp.StatusCode).Msg("[Client.send] response")

	if httpResp.StatusCode == http.StatusUnauthorized {
		httpErr := newHttpError(httpResp.StatusCode, respBody)
		c.notifyUnauthorized(sentToken)
		return nil, &apperrors.AuthExpiredError{HttpError: httpErr}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newHttpError(httpResp.StatusCode, respBody)
	}

	return &Response{
		Status:       httpResp.StatusCode,
		Body:         respBody,
		RotatedToken: rotatedToken(respBody),
	}, nil
}

// sign attaches the current bearer, if any, and returns it
func (c *Client) sign(req *http.Request) string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return ""
	}
	tok.SetAuthHeader(req)
	return tok.AccessToken
}

func (c *Client) notifyUnauthorized(sentToken string) {
	c.hooksLock.RLock()
	hooks := append([]UnauthorizedHook(nil), c.hooks...)
	c.hooksLock.RUnlock()

	metrics.RecordSessionEvent(metrics.EventUnauthorized)
	for _, h := range hooks {
		h(sentToken)
	}
}

func newHttpError(status int, body []byte) *apperrors.HttpError {
	return &apperrors.HttpError{
		Status:  status,
		Body:    body,
		Message: errorMessage(body),
	}
}

// errorMessage reads "message" from an error body. Validation failures send
// an array of messages.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	msg := gjson.GetBytes(body, "message")
	if msg.IsArray() {
		parts := make([]string, 0)
		for _, m := range msg.Array() {
			parts = append(parts, m.String())
		}
		return strings.Join(parts, "; ")
	}
	return msg.String()
}

// rotatedToken returns the accessToken carried by a response body, if any
func rotatedToken(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ""
	}
	tok := root.Get("accessToken")
	if tok.Type != gjson.String {
		return ""
	}
	return tok.String()
}

func retryable(err error) bool {
	var netErr *apperrors.NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(netErr.Err, context.Canceled)
	}
	var authErr *apperrors.AuthExpiredError
	if errors.As(err, &authErr) {
		return false
	}
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 || httpErr.Status == http.StatusTooManyRequests
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
