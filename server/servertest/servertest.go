// Package servertest runs the reference backend for tests, recording the
// calls it receives and letting tests inject faults per route.
package servertest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/jrsteele09/go-storefront/server"
)

// RotateAfter is the token age after which the test backend rotates tokens
const RotateAfter = time.Minute

// Config is the backend configuration used in tests
type Config struct {
	config.EnvVars
	config.Backend
}

func (Config) GetEnv() string                     { return "TEST" }
func (Config) GetTokenSecret() string             { return "servertest-secret" }
func (Config) GetTokenTTL() time.Duration         { return 15 * time.Minute }
func (Config) GetTokenRotateAfter() time.Duration { return RotateAfter }

// Call is one request the backend received. Path is relative to the API root.
type Call struct {
	Method         string
	Path           string
	Query          string
	Authorization  string
	IdempotencyKey string
}

type Backend struct {
	*httptest.Server
	Backend *server.Server

	offset atomic.Int64

	lock   sync.Mutex
	calls  []Call
	faults map[string]http.HandlerFunc
}

// New starts a backend that is closed when the test ends
func New(t testing.TB, opts ...server.Option) *Backend {
	t.Helper()
	b := &Backend{faults: make(map[string]http.HandlerFunc)}

	opts = append([]server.Option{server.WithNowTime(b.now)}, opts...)
	s, err := server.New(Config{}, opts...)
	if err != nil {
		t.Fatalf("servertest: starting backend: %v", err)
	}
	b.Backend = s
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// APIURL is the base URL clients are configured with
func (b *Backend) APIURL() string {
	return b.URL + server.RouteAPI
}

// Advance moves the backend clock forward
func (b *Backend) Advance(d time.Duration) {
	b.offset.Add(int64(d))
}

// Fail makes every request to method and path answer with h until Heal
func (b *Backend) Fail(method, path string, h http.HandlerFunc) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.faults[method+" "+path] = h
}

func (b *Backend) Heal(method, path string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.faults, method+" "+path)
}

func (b *Backend) Calls() []Call {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount counts the requests received for method and path
func (b *Backend) CallCount(method, path string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// LastCall returns the most recent request for method and path
func (b *Backend) LastCall(method, path string) (Call, bool) {
	calls := b.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method && calls[i].Path == path {
			return calls[i], true
		}
	}
	return Call{}, false
}

func (b *Backend) ResetCalls() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls = nil
}

// Status answers with status and a {"message": ...} body
func Status(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"` + message + `"}`))
	}
}

// Drop closes the connection without answering, a transport failure for the client
func Drop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("servertest: response writer cannot be hijacked")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}
}

func (b *Backend) now() time.Time {
	return time.Now().Add(time.Duration(b.offset.Load()))
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	call := Call{
		Method:         r.Method,
		Path:           strings.TrimPrefix(r.URL.Path, server.RouteAPI),
		Query:          r.URL.RawQuery,
		Authorization:  r.Header.Get("Authorization"),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}

	b.lock.Lock()
	b.calls = append(b.calls, call)
	fault := b.faults[call.Method+" "+call.Path]
	b.lock.Unlock()

	if fault != nil {
		fault(w, r)
		return
	}
	b.Backend.ServeHTTP(w, r)
}
