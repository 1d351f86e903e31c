package creditdesk

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// GateState is the gate's position for one navigation instance.
type GateState int

const (
	// GateLoading means the identity fetch has not resolved yet:
	// neither protected content nor a redirect.
	GateLoading GateState = iota
	// GateAuthenticated admits the navigation.
	GateAuthenticated
	// GateUnauthenticated replaces the navigation with a redirect to
	// the entry view.
	GateUnauthenticated
)

func (s GateState) String() string {
	switch s {
	case GateLoading:
		return "loading"
	case GateAuthenticated:
		return "authenticated"
	case GateUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Decision is the gate's terminal outcome for one navigation.
type Decision struct {
	// Admitted is true when protected content may render.
	Admitted bool
	// RedirectTo is the entry path when the navigation is not admitted.
	RedirectTo string
	// Identity is the user record when admitted, passed through
	// untouched.
	Identity gjson.Result
}

// Gate admits or redirects one navigation to a protected view. A gate is
// single-use: once resolved its outcome is final, and re-entering a
// protected view builds a new gate.
type Gate struct {
	client   *Client
	entry    string
	state    GateState
	resolved bool
	decision Decision
	err      error
}

// NewGate returns a gate in the loading state.
func NewGate(client *Client) *Gate {
	return &Gate{
		client: client,
		entry:  client.conf.Session.EntryPath,
		state:  GateLoading,
	}
}

// State returns the gate's current position.
func (g *Gate) State() GateState { return g.state }

// Resolve runs the identity fetch and lands the gate in exactly one of
// GateAuthenticated or GateUnauthenticated. The fetch rides the
// dispatcher, so an expired credential gets its one refresh-and-retry
// here too. A failed or empty identity fetch ends the session for this
// navigation: the decision redirects to the entry view and no further
// fetch is attempted. Calling Resolve again returns the first outcome.
func (g *Gate) Resolve(ctx context.Context) Decision {
	if g.resolved {
		return g.decision
	}

	identity, err := g.client.Identity(ctx)
	switch {
	case err != nil:
		g.err = err
		log.WithError(err).Debug("Identity fetch failed, redirecting to entry")
		g.state = GateUnauthenticated
		g.decision = Decision{RedirectTo: g.entry}
	case !identity.Exists():
		g.state = GateUnauthenticated
		g.decision = Decision{RedirectTo: g.entry}
	default:
		g.state = GateAuthenticated
		g.decision = Decision{Admitted: true, Identity: identity}
	}
	g.resolved = true
	return g.decision
}

// Err reports why the gate landed unauthenticated, when a failure drove
// it there. Nil in the loading and authenticated states, and for an
// unauthenticated outcome caused by an empty identity.
func (g *Gate) Err() error { return g.err }
