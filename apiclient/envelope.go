package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrUnexpectedShape is returned by GetList when the body holds no list
var ErrUnexpectedShape = errors.New("response is neither a list nor a {data: [...]} object")

// ErrInvalidBody is returned when a 2xx response carries no JSON value to decode
var ErrInvalidBody = errors.New("response body is empty or not JSON")

// Envelope is a decoded response. RotatedToken is set when the backend slid
// the session forward by embedding a fresh accessToken in the body.
type Envelope[T any] struct {
	Data         T
	RotatedToken string
}

// Get decodes the response body of a GET into T
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (*Envelope[T], error) {
	return call[T](ctx, c, Request{Method: http.MethodGet, Path: path, Query: query})
}

// GetList decodes a list response. The backend answers either with a bare
// array or with an object carrying the array under "data".
func GetList[T any](ctx context.Context, c *Client, path string, query url.Values) (*Envelope[[]T], error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, err
	}

	raw, err := listPayload(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[GetList] %s", path)
	}
	items := make([]T, 0)
	if raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errors.Wrapf(err, "[GetList] failed to decode %s", path)
		}
	}
	return &Envelope[[]T]{Data: items, RotatedToken: resp.RotatedToken}, nil
}

func Post[T any](ctx context.Context, c *Client, path string, body any, header http.Header) (*Envelope[T], error) {
	return call[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body, Header: header})
}

func Patch[T any](ctx context.Context, c *Client, path string, body any) (*Envelope[T], error) {
	return call[T](ctx, c, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func Delete[T any](ctx context.Context, c *Client, path string) (*Envelope[T], error) {
	return call[T](ctx, c, Request{Method: http.MethodDelete, Path: path})
}

// Empty is used for endpoints whose body is not needed
type Empty struct{}

func call[T any](ctx context.Context, c *Client, req Request) (*Envelope[T], error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	env := &Envelope[T]{RotatedToken: resp.RotatedToken}
	if _, empty := any(env.Data).(Empty); empty {
		return env, nil
	}
	if len(resp.Body) == 0 || !gjson.ValidBytes(resp.Body) || gjson.ParseBytes(resp.Body).Type == gjson.Null {
		return nil, errors.Wrapf(ErrInvalidBody, "[apiclient] invalid response body for %s %s", req.Method, req.Path)
	}
	if err := json.Unmarshal(resp.Body, &env.Data); err != nil {
		return nil, errors.Wrapf(err, "[apiclient] failed to decode %s %s", req.Method, req.Path)
	}
	return env, nil
}

func listPayload(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return body, nil
	}
	if data := root.Get("data"); data.IsArray() {
		return []byte(data.Raw), nil
	}
	if root.Type == gjson.Null {
		return nil, nil
	}
	return nil, ErrUnexpectedShape
}
