package creditdesk

import (
	"context"
	"net/http"

	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"
)

type readOptions struct {
	emptyOnUnauthorized bool
}

// ReadOption adjusts how Read treats an unauthenticated response.
type ReadOption func(*readOptions)

// ReadEmptyOnUnauthorized makes Read yield an empty result instead of an
// error when the server answers 401.
func ReadEmptyOnUnauthorized() ReadOption {
	return func(o *readOptions) {
		o.emptyOnUnauthorized = true
	}
}

// Read fetches key through the same credential attachment as Do, but
// without the refresh-and-retry: a read that loses the race with expiry
// just reports it per the chosen option. The result is the response body
// as an opaque JSON document.
func (c *Client) Read(ctx context.Context, key string, opts ...ReadOption) (gjson.Result, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	cred, _ := c.store.Get()
	resp, err := c.send(ctx, http.MethodGet, key, nil, cred)
	if err != nil {
		return gjson.Result{}, trace.Wrap(err)
	}
	if resp.StatusCode() == http.StatusUnauthorized && o.emptyOnUnauthorized {
		return gjson.Result{}, nil
	}
	result, err := toResult(resp)
	if err != nil {
		return gjson.Result{}, trace.Wrap(err)
	}
	return result.JSON(), nil
}
