package token

import (
	"sync"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Store owns the current credential: a single-writer, multi-reader cell
// with a durable mirror behind it. There is at most one current
// credential at a time; it is either present or absent.
type Store struct {
	mu     sync.Mutex
	cred   Credential
	mirror Mirror
}

// NewStore returns a Store backed by mirror.
func NewStore(mirror Mirror) *Store {
	return &Store{
		mirror: mirror,
	}
}

// Get returns the in-memory credential if one is set. Otherwise it falls
// back to the mirror and repopulates memory. A mirror read failure is
// logged and treated as absent; Get has no side effect when both are
// empty.
func (s *Store) Get() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred != "" {
		return s.cred, true
	}

	cred, ok, err := s.mirror.Load()
	if err != nil {
		log.WithError(err).Warn("Failed to load credential mirror")
		return "", false
	}
	if !ok {
		return "", false
	}

	s.cred = cred
	return cred, true
}

// Set replaces the current credential in both memory and the mirror.
// The mirror is written first; if that write fails the call fails and
// readers keep observing the previous value. Setting the empty
// credential clears both.
func (s *Store) Set(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cred == "" {
		if err := s.mirror.Clear(); err != nil {
			return trace.Wrap(err)
		}
	} else if err := s.mirror.Save(cred); err != nil {
		return trace.Wrap(err)
	}

	s.cred = cred
	return nil
}
