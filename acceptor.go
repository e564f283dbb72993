package paxos

import (
	"cmp"
	"context"
	"sync"
)

// An Acceptor is an in-memory member of a consensus group, implementing
// the Peer interface directly with no transport in between. It serves
// local groups and tests, and is the reference for what transport-backed
// peers must do on the remote side.
//
// It is thread-safe and ready for use on instantiation, so any number
// of clients may drive the same Acceptor concurrently.
type Acceptor[T any, V, C cmp.Ordered] struct {
	mut sync.Mutex
	id  C

	quorum       Quorum[C]       // the group this acceptor believes it is in
	reconfigured *Proposal[V, C] // proposal at which that group was adopted

	minimum   *Proposal[V, C] // lowest proposal this acceptor will accept
	accepted  *Accepted[T, V, C]
	confirmed bool
}

// NewAcceptor creates an acceptor with the given identity
// and initial view of the group membership.
func NewAcceptor[T any, V, C cmp.Ordered](id C, quorum Quorum[C]) *Acceptor[T, V, C] {
	return &Acceptor[T, V, C]{id: id, quorum: quorum}
}

// ID implements the Peer interface.
func (a *Acceptor[T, V, C]) ID() C {
	return a.id
}

// Reconfigure replaces the acceptor's view of the group membership,
// recording the proposal at which the change was decided so that stale
// readers can be told how far behind they are.
func (a *Acceptor[T, V, C]) Reconfigure(quorum Quorum[C], at Proposal[V, C]) {
	a.mut.Lock()
	defer a.mut.Unlock()
	a.quorum = quorum
	a.reconfigured = &at
}

// Propose implements the Peer interface. A proposal below an earlier
// promise is not promised; the reply then carries the higher proposal
// so the proposing client can catch up. A value accepted at the same
// version rides along in the reply; values of older versions are
// superseded decrees and stay out of newer rounds.
func (a *Acceptor[T, V, C]) Propose(ctx context.Context, q Quorum[C], p Proposal[V, C]) (Response[T, V, C], error) {
	a.mut.Lock()
	defer a.mut.Unlock()

	var r Response[T, V, C]
	if a.accepted != nil && a.accepted.Proposal.Version == p.Version {
		accepted := *a.accepted
		r.Accepted = &accepted
		r.Confirmed = a.confirmed
	}
	if a.minimum != nil && p.Less(*a.minimum) {
		seen := *a.minimum
		r.Proposal = &seen
		return r, nil
	}
	a.minimum = &p
	return r, nil
}

// Accept implements the Peer interface, accepting the value if the
// promise still stands and returning the minimum proposal the acceptor
// is now willing to accept.
func (a *Acceptor[T, V, C]) Accept(ctx context.Context, q Quorum[C], p Proposal[V, C], value T) (Proposal[V, C], error) {
	a.mut.Lock()
	defer a.mut.Unlock()

	if a.minimum == nil || !p.Less(*a.minimum) {
		a.minimum = &p
		a.accepted = &Accepted[T, V, C]{Proposal: p, Value: value}
		a.confirmed = false
	}
	return *a.minimum, nil
}

// Confirm implements the Peer interface, marking the value accepted at
// p as chosen. A confirmation for anything but the currently accepted
// proposal is obsolete and ignored.
func (a *Acceptor[T, V, C]) Confirm(ctx context.Context, q Quorum[C], p Proposal[V, C]) error {
	a.mut.Lock()
	defer a.mut.Unlock()

	if a.accepted != nil && a.accepted.Proposal == p {
		a.confirmed = true
	}
	return nil
}

// Get implements the Peer interface. A caller whose quorum disagrees
// with the acceptor's view gets a WrongQuorumError carrying the
// proposal at which the acceptor's view was adopted by Reconfigure, or
// no proposal if the view is still the one given to NewAcceptor.
func (a *Acceptor[T, V, C]) Get(ctx context.Context, q Quorum[C]) (*Accepted[T, V, C], error) {
	a.mut.Lock()
	defer a.mut.Unlock()

	if !q.Equal(a.quorum) {
		var at *Proposal[V, C]
		if a.reconfigured != nil {
			p := *a.reconfigured
			at = &p
		}
		return nil, &WrongQuorumError[V, C]{Proposal: at}
	}
	if a.accepted == nil {
		return nil, nil
	}
	accepted := *a.accepted
	return &accepted, nil
}
