package paxos

import (
	"cmp"
	"context"
	"fmt"
)

// Peer is the capability a client holds on each acceptor of the group.
//
// The four operations correspond to the protocol phases: Propose opens a
// round, Accept submits a value, Confirm marks the value as chosen, and
// Get reads back the distributed state. Every operation carries the
// quorum the client believes the group to have, so that acceptors can
// detect and report membership drift.
//
// Implementations report failures through error values. A peer that
// cannot be reached, or that answers it is temporarily unable to
// participate, must return an error matching ErrUnavailable; the client
// then excludes it for the rest of the current iteration without
// aborting the phase. A peer-side error of foreign origin should be
// wrapped in a WeakError so the client can defer it: it only surfaces if
// the quorum headcount subsequently fails. Transports enforcing
// timeouts should surface expiry as ErrUnavailable. Any other error
// aborts the client's operation and propagates unmodified.
//
// Get may additionally return a WrongQuorumError when the quorum passed
// by the client disagrees with the acceptor's view of the group.
type Peer[T any, V, C cmp.Ordered] interface {
	// ID returns the acceptor's stable identity,
	// used to populate quorums.
	ID() C

	// Propose asks the acceptor to promise not to accept proposals
	// below p, and reports what the acceptor has already seen.
	Propose(ctx context.Context, q Quorum[C], p Proposal[V, C]) (Response[T, V, C], error)

	// Accept submits value at proposal p and returns the minimum
	// proposal the acceptor is now willing to accept. A returned
	// minimum above p means the acceptor promised a competing client
	// in the meantime and value was not accepted.
	Accept(ctx context.Context, q Quorum[C], p Proposal[V, C], value T) (Proposal[V, C], error)

	// Confirm records that the value accepted at proposal p
	// was chosen by a majority.
	Confirm(ctx context.Context, q Quorum[C], p Proposal[V, C]) error

	// Get returns the acceptor's accepted value, or nil if none yet.
	Get(ctx context.Context, q Quorum[C]) (*Accepted[T, V, C], error)
}

// Accepted is a value an acceptor has accepted,
// together with the proposal that carried it.
type Accepted[T any, V, C cmp.Ordered] struct {
	Proposal Proposal[V, C]
	Value    T
}

func (a Accepted[T, V, C]) String() string {
	return fmt.Sprintf("%v@%v", a.Value, a.Proposal)
}

// Response is an acceptor's reply to Propose.
//
// Proposal, if non-nil, is the highest proposal the acceptor has seen
// above the client's own. Accepted, if non-nil, is the value the
// acceptor has already accepted; the client must then re-propose that
// value rather than its own. Confirmed reports that the accepted value
// was already chosen, in which case Accepted is always present.
type Response[T any, V, C cmp.Ordered] struct {
	Proposal  *Proposal[V, C]
	Accepted  *Accepted[T, V, C]
	Confirmed bool
}

// State is the result of a consistent read: the accepted value carried
// by the highest proposal found on any reachable acceptor, if any, and
// the quorum the read was conducted against.
// Value and Proposal are either both present or both nil.
type State[T any, V, C cmp.Ordered] struct {
	Value    *T
	Quorum   Quorum[C]
	Proposal *Proposal[V, C]
}

// Choice is the result of choosing a value. When Conflicted is set, the
// client found a value already accepted by the group and adopted it
// instead of its own; Value then holds the adopted value.
type Choice[T any, V, C cmp.Ordered] struct {
	Proposal   Proposal[V, C]
	Conflicted bool
	Value      *T
}

func (c Choice[T, V, C]) String() string {
	if c.Conflicted {
		return fmt.Sprintf("chose %v@%v (adopted)", *c.Value, c.Proposal)
	}
	return fmt.Sprintf("chose own value@%v", c.Proposal)
}
