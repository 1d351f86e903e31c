// Package token holds the client's credential state: the current access
// credential, its durable mirror, and the single-flight refresh
// coordinator that replaces it when the server rejects it.
package token

import "context"

// Credential is an opaque bearer token granting short-lived API access.
// The client never parses or inspects it; expiry is observed only as a
// 401 from the server.
type Credential string

// Mirror is a durable slot for the current credential, keyed by a fixed
// name. Absence of the key means "no credential".
type Mirror interface {
	Load() (Credential, bool, error)
	Save(Credential) error
	Clear() error
}

// Source issues a fresh credential from long-lived session evidence.
type Source interface {
	Issue(ctx context.Context) (Credential, error)
}

type sourceStatic struct {
	value Credential
}

var _ Source = (*sourceStatic)(nil)

// NewStaticSource returns a Source that always issues value. Useful for
// development setups and tests.
func NewStaticSource(value Credential) Source {
	return &sourceStatic{
		value: value,
	}
}

func (s *sourceStatic) Issue(_ context.Context) (Credential, error) {
	return s.value, nil
}
