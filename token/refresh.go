package token

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

// Refresher replaces a rejected credential with a fresh one, collapsing
// concurrent refresh attempts into a single network call. All callers
// that join an in-flight attempt observe the same outcome.
type Refresher struct {
	source Source
	store  *Store
	single singleflight.Group
}

// NewRefresher returns a Refresher that issues credentials from source
// and publishes them through store.
func NewRefresher(source Source, store *Store) *Refresher {
	return &Refresher{
		source: source,
		store:  store,
	}
}

// Refresh returns a credential newer than stale. If an attempt is
// already in flight the caller joins it instead of issuing a second
// call. On success the new credential is written to the store before any
// caller sees it; on failure the store is cleared and every joined
// caller receives the same error. A failed attempt is not retried here.
//
// Cancelling ctx abandons the wait only: the shared attempt runs to
// completion so joined callers are not corrupted.
func (r *Refresher) Refresh(ctx context.Context, stale Credential) (Credential, error) {
	ch := r.single.DoChan("refresh", func() (any, error) {
		// Double check: another caller may have replaced it already.
		if current, ok := r.store.Get(); ok && current != stale {
			return current, nil
		}

		issueCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		issued, err := r.source.Issue(issueCtx)
		if err != nil {
			if cerr := r.store.Set(""); cerr != nil {
				log.WithError(cerr).Warn("Failed to clear credential after refresh failure")
			}
			return Credential(""), trace.Wrap(err)
		}
		if err := r.store.Set(issued); err != nil {
			return Credential(""), trace.Wrap(err)
		}
		return issued, nil
	})

	select {
	case <-ctx.Done():
		return "", trace.Wrap(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", trace.Wrap(res.Err)
		}
		return res.Val.(Credential), nil
	}
}

type sourceHTTP struct {
	client *resty.Client
	path   string
	field  string
}

var _ Source = (*sourceHTTP)(nil)

// NewHTTPSource returns a Source that POSTs to the refresh endpoint at
// path. The call carries no bearer header: it authenticates with the
// ambient session cookie held by the client's jar. The new credential is
// read from the named field of the JSON response.
func NewHTTPSource(client *resty.Client, path, field string) Source {
	return &sourceHTTP{
		client: client,
		path:   path,
		field:  field,
	}
}

func (s *sourceHTTP) Issue(ctx context.Context) (Credential, error) {
	resp, err := s.client.R().SetContext(ctx).Post(s.path)
	if err != nil {
		return "", trace.ConnectionProblem(err, "refresh call failed")
	}
	if resp.IsError() {
		return "", trace.AccessDenied("refresh rejected with %d %s", resp.StatusCode(), string(resp.Body()))
	}
	cred := gjson.GetBytes(resp.Body(), s.field).String()
	if cred == "" {
		return "", trace.Errorf("refresh response carries no %q field", s.field)
	}
	return Credential(cred), nil
}
