// Package creditdesk is the Go client for the creditdesk API. Every
// call rides the same authenticated pipeline: the current credential is
// attached as a bearer header, a 401 on a credentialed call triggers
// exactly one shared refresh followed by exactly one retry, and
// navigation to protected views is gated on the resulting session
// state.
package creditdesk

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/creditdesk/creditdesk-go/token"
	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const apiMaxConns = 100

// Client talks to the creditdesk API.
type Client struct {
	rest      *resty.Client
	store     *token.Store
	refresher *token.Refresher
	conf      *Config
}

// NewClient builds a Client from conf. The underlying transport keeps a
// cookie jar: the refresh endpoint authenticates with the ambient
// session cookie, not the expiring credential.
func NewClient(conf *Config) (*Client, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	rest := resty.
		NewWithClient(&http.Client{
			Timeout: conf.API.timeout,
			Jar:     jar,
			Transport: &http.Transport{
				MaxConnsPerHost:     apiMaxConns,
				MaxIdleConnsPerHost: apiMaxConns,
			},
		}).
		SetBaseURL(conf.API.URL).
		SetHeader("Accept", "application/json")

	store := token.NewStore(conf.Mirror.build())
	source := token.NewHTTPSource(rest, conf.Session.RefreshPath, conf.Session.TokenField)
	return &Client{
		rest:      rest,
		store:     store,
		refresher: token.NewRefresher(source, store),
		conf:      conf,
	}, nil
}

// SetCredential seeds or replaces the current credential, e.g. after an
// interactive login. The empty credential clears it.
func (c *Client) SetCredential(cred token.Credential) error {
	return trace.Wrap(c.store.Set(cred))
}

// Response is a successful API response. The body is passed through
// untouched.
type Response struct {
	Status int
	body   []byte
}

// Bytes returns the raw response body.
func (r *Response) Bytes() []byte { return r.body }

// JSON returns the response body as an opaque JSON document.
func (r *Response) JSON() gjson.Result { return gjson.ParseBytes(r.body) }

// Do sends one API request. The current credential, when present, rides
// along as a bearer header; a JSON content type is set when body is
// present. When the server answers 401 and a credential was attached, Do
// refreshes once and resends the same request exactly once, then
// reports that second response whatever it is. A 401 with no credential
// attached propagates directly and never triggers a refresh.
//
// The retry reissues the request as-is, including non-idempotent writes:
// the first send was rejected before processing, not half-processed.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	cred, _ := c.store.Get()
	resp, err := c.send(ctx, method, path, body, cred)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if resp.StatusCode() != http.StatusUnauthorized || cred == "" {
		return toResult(resp)
	}

	log.WithFields(log.Fields{"method": method, "path": path}).Debug("Credential rejected, refreshing")
	fresh, refreshErr := c.refresher.Refresh(ctx, cred)
	if refreshErr != nil {
		log.WithError(refreshErr).Warn("Credential refresh failed, session ended")
		return toResult(resp)
	}

	retried, err := c.send(ctx, method, path, body, fresh)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return toResult(retried)
}

func (c *Client) send(ctx context.Context, method, path string, body any, cred token.Credential) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if cred != "" {
		req.SetHeader("Authorization", "Bearer "+string(cred))
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, trace.ConnectionProblem(err, "sending %s %s", method, path)
	}
	return resp, nil
}

func toResult(resp *resty.Response) (*Response, error) {
	if resp.IsError() {
		return nil, &StatusError{
			Status: resp.StatusCode(),
			Body:   strings.TrimSpace(string(resp.Body())),
		}
	}
	return &Response{Status: resp.StatusCode(), body: resp.Body()}, nil
}

// Identity fetches the authenticated user record.
func (c *Client) Identity(ctx context.Context) (gjson.Result, error) {
	return c.passthrough(ctx, http.MethodGet, c.conf.Session.IdentityPath, nil)
}

// Transactions fetches the user's transaction records.
func (c *Client) Transactions(ctx context.Context) (gjson.Result, error) {
	return c.passthrough(ctx, http.MethodGet, "/api/transactions", nil)
}

// Settings fetches the user's settings record.
func (c *Client) Settings(ctx context.Context) (gjson.Result, error) {
	return c.passthrough(ctx, http.MethodGet, "/api/settings", nil)
}

// UpdateSettings replaces the user's settings record.
func (c *Client) UpdateSettings(ctx context.Context, payload any) (gjson.Result, error) {
	return c.passthrough(ctx, http.MethodPut, "/api/settings", payload)
}

// CreateTicket opens a support ticket.
func (c *Client) CreateTicket(ctx context.Context, payload any) (gjson.Result, error) {
	return c.passthrough(ctx, http.MethodPost, "/api/tickets", payload)
}

// Purchase submits a credit purchase. Payment handling is server-side;
// the payload and response pass through untouched.
func (c *Client) Purchase(ctx context.Context, payload any) (gjson.Result, error) {
	return c.passthrough(ctx, http.MethodPost, "/api/purchase", payload)
}

// Logout ends the server session and clears the credential. A 401 from
// the logout endpoint means the session was already gone and is not an
// error.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Do(ctx, http.MethodPost, "/api/logout", nil); err != nil && !IsUnauthorized(err) {
		return trace.Wrap(err)
	}
	if err := c.store.Set(""); err != nil {
		return trace.Wrap(err)
	}
	log.Info("Session cleared")
	return nil
}

// passthrough runs one dispatched call and hands the body back as an
// opaque JSON document. Record shapes belong to the server; nothing here
// inspects them.
func (c *Client) passthrough(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return gjson.Result{}, trace.Wrap(err)
	}
	return resp.JSON(), nil
}
