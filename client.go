package paxos

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dedis/paxos/lib/backoff"
)

// A Client proposes values to a group of acceptors and drives them to
// agreement, one chosen value per version.
//
// The client owns no persistent state: it may be discarded after any
// operation, successful or not, and recreated with the same identity.
// The peer list may be replaced between operations via Peers but not
// while an operation is in flight. A Client must not have Choose or
// State invoked concurrently with itself; distinct Clients are
// independent and may run concurrently against the same acceptors.
type Client[T any, V, C cmp.Ordered] struct {
	id              C
	peers           []Peer[T, V, C]
	conflictBackoff bool
	round           int // highest round this client has used
}

// NewClient creates a client with a stable identity and the peers
// forming the acceptor group. It panics on an empty peer list.
func NewClient[T any, V, C cmp.Ordered](id C, peers []Peer[T, V, C]) *Client[T, V, C] {
	if len(peers) == 0 {
		panic("paxos: client needs at least one peer")
	}
	return &Client[T, V, C]{
		id:              id,
		peers:           peers,
		conflictBackoff: true,
	}
}

// ID returns the client's identity.
func (c *Client[T, V, C]) ID() C {
	return c.id
}

// Peers replaces the client's view of the acceptor group,
// e.g. after a read failed with a WrongQuorumError.
func (c *Client[T, V, C]) Peers(peers []Peer[T, V, C]) {
	if len(peers) == 0 {
		panic("paxos: client needs at least one peer")
	}
	c.peers = peers
}

// ConflictBackoff controls whether the client sleeps between retries
// when competing clients conflict. It defaults to true; disabling it is
// useful in tests that script the contention themselves.
func (c *Client[T, V, C]) ConflictBackoff(enabled bool) {
	c.conflictBackoff = enabled
}

func (c *Client[T, V, C]) String() string {
	return fmt.Sprintf("paxos.Client(%v)", c.id)
}

// quorum returns the set of current peer identities.
func (c *Client[T, V, C]) quorum() Quorum[C] {
	q := make(Quorum[C], len(c.peers))
	for _, peer := range c.peers {
		q[peer.ID()] = struct{}{}
	}
	return q
}

// checkHeadcount fails a phase that a majority of the quorum did not
// answer. Writes require a strict majority. Reads get a slack of one,
// which lets a read of an even-sized quorum pass with exactly half of
// it answering and changes nothing for odd sizes. If an opaque peer
// error was captured during the
// phase, it is returned in place of TooFewPeersError to preserve the
// original diagnostic.
func (c *Client[T, V, C]) checkHeadcount(q Quorum[C], reached int, weakErr error, reading bool) error {
	slack := 0
	if reading {
		slack = 1
	}
	if reached <= (len(q)-slack)/2 {
		if weakErr != nil {
			return weakErr
		}
		return &TooFewPeersError{Reached: reached, Total: len(q)}
	}
	return nil
}

// absorb handles the two per-peer failures that do not abort a phase:
// an unavailable peer is excluded from the rest of the iteration, and
// an opaque peer error additionally records its underlying cause in
// *weakErr if it is the first one. It reports whether err was absorbed.
// The caller must hold the mutex guarding unavailable and weakErr.
func (c *Client[T, V, C]) absorb(err error, id C, unavailable map[C]bool, weakErr *error) bool {
	var weak *WeakError
	switch {
	case errors.Is(err, ErrUnavailable):
		unavailable[id] = true
		return true
	case errors.As(err, &weak):
		unavailable[id] = true
		if *weakErr == nil {
			if weak.Err != nil {
				*weakErr = weak.Err
			} else {
				*weakErr = weak
			}
		}
		return true
	}
	return false
}

// Choose drives value to chosen status at the zero version.
func (c *Client[T, V, C]) Choose(ctx context.Context, value T) (Choice[T, V, C], error) {
	var version V
	return c.ChooseAt(ctx, version, value)
}

// ChooseAt drives a single value to chosen status at the given version.
//
// The returned Choice carries the proposal that won. If another
// client's value had already been accepted by the group, that value is
// adopted instead of the caller's and returned with Conflicted set:
// this is what keeps concurrent clients from ever choosing two
// different values at one version.
//
// ChooseAt fails with TooFewPeersError when a majority of the group
// cannot be reached, or with the first opaque peer error captured while
// the majority was missed. Competing clients are not an error: the
// client re-enters the protocol at an adjusted version and round,
// backing off for a randomized, exponentially growing delay while the
// contention lasts.
func (c *Client[T, V, C]) ChooseAt(ctx context.Context, version V, value T) (Choice[T, V, C], error) {
	var none Choice[T, V, C]
	var delay backoff.Delay
	for {
		q := c.quorum()
		c.round++
		proposal := Proposal[V, C]{Version: version, Round: c.round, Client: c.id}
		unavailable := make(map[C]bool)
		var replace *T // a value already accepted out there, which we must carry

		// Phase 1: ask every peer to promise away proposals below
		// ours, and learn what the group has already seen.
		var (
			mut       sync.Mutex
			reached   int
			weakErr   error
			responses []Response[T, V, C]
		)
		err := forEach(ctx, c.peers, func(ctx context.Context, peer Peer[T, V, C]) error {
			r, err := peer.Propose(ctx, q, proposal)
			mut.Lock()
			defer mut.Unlock()
			if err != nil {
				if c.absorb(err, peer.ID(), unavailable, &weakErr) {
					return nil
				}
				return err
			}
			reached++
			responses = append(responses, r)
			return nil
		})
		if err != nil {
			return none, err
		}

		// If a confirmation already reached some acceptor, the value
		// it carries was chosen and there is nothing left to decide.
		for _, r := range responses {
			if r.Confirmed {
				v := r.Accepted.Value
				return Choice[T, V, C]{
					Proposal:   r.Accepted.Proposal,
					Conflicted: true,
					Value:      &v,
				}, nil
			}
		}
		if err := c.checkHeadcount(q, reached, weakErr, false); err != nil {
			return none, err
		}

		// An accepted value may already hold a decision we cannot see,
		// so the one under the highest proposal replaces ours.
		var accepted *Accepted[T, V, C]
		for i := range responses {
			a := responses[i].Accepted
			if a != nil && (accepted == nil || accepted.Proposal.Less(a.Proposal)) {
				accepted = a
			}
		}
		if accepted != nil {
			v := accepted.Value
			replace = &v
		}

		// Catch up with the highest proposal the group has seen.
		// Seeing our own proposal back means a round of ours reached
		// the group before; a strictly higher one means another
		// client got ahead. Either way the adjusted round is
		// pre-incremented on the next iteration, which eventually
		// produces a proposal above everything seen.
		var seen *Proposal[V, C]
		for _, r := range responses {
			if r.Proposal != nil && (seen == nil || seen.Less(*r.Proposal)) {
				seen = r.Proposal
			}
		}
		if seen != nil {
			if *seen == proposal {
				c.round = seen.Round + 1
				continue
			}
			if proposal.Less(*seen) {
				version = seen.Version
				c.round = seen.Round
				continue
			}
		}

		// Phase 2: submit the value to every peer still reachable.
		conflicted := false
		send := value
		if replace != nil {
			send = *replace
		}
		reached, weakErr = 0, nil
		err = forEach(ctx, c.peers, func(ctx context.Context, peer Peer[T, V, C]) error {
			mut.Lock()
			skip := unavailable[peer.ID()]
			mut.Unlock()
			if skip {
				return nil
			}
			minimum, err := peer.Accept(ctx, q, proposal, send)
			mut.Lock()
			defer mut.Unlock()
			if err != nil {
				if c.absorb(err, peer.ID(), unavailable, &weakErr) {
					return nil
				}
				return err
			}
			if proposal.Less(minimum) {
				// The peer promised a competing client in the
				// meantime. No point finishing the fan-out:
				// restart from that client's position.
				version = minimum.Version
				c.round = minimum.Round
				conflicted = true
				return errBreak
			}
			reached++
			return nil
		})
		if err != nil {
			return none, err
		}
		if conflicted {
			if c.conflictBackoff {
				if err := delay.Wait(ctx); err != nil {
					return none, err
				}
			} else {
				delay.Next()
			}
			continue
		}
		if err := c.checkHeadcount(q, reached, weakErr, false); err != nil {
			return none, err
		}

		// Phase 3: a majority accepted, tell the group the value is
		// chosen. A minimum that moved since phase 2 is not reported
		// here; a later Choose or State reconciles it.
		reached, weakErr = 0, nil
		err = forEach(ctx, c.peers, func(ctx context.Context, peer Peer[T, V, C]) error {
			mut.Lock()
			skip := unavailable[peer.ID()]
			mut.Unlock()
			if skip {
				return nil
			}
			err := peer.Confirm(ctx, q, proposal)
			mut.Lock()
			defer mut.Unlock()
			if err != nil {
				if c.absorb(err, peer.ID(), unavailable, &weakErr) {
					return nil
				}
				return err
			}
			reached++
			return nil
		})
		if err != nil {
			return none, err
		}
		if err := c.checkHeadcount(q, reached, weakErr, false); err != nil {
			return none, err
		}

		return Choice[T, V, C]{
			Proposal:   proposal,
			Conflicted: replace != nil,
			Value:      replace,
		}, nil
	}
}

// State reads the distributed state consistently: it returns the
// accepted value carried by the highest proposal found on the group,
// or an empty State if nothing has been accepted yet.
//
// When an acceptor reports a quorum mismatch observed at a proposal
// above everything read, the group membership has been reconfigured
// past the client's view and State fails with that WrongQuorumError;
// the caller should refresh its peer list and retry. A mismatch
// observed at a lower proposal is stale and ignored.
func (c *Client[T, V, C]) State(ctx context.Context) (State[T, V, C], error) {
	var none State[T, V, C]
	q := c.quorum()
	var (
		mut         sync.Mutex
		reached     int
		weakErr     error
		res         *Accepted[T, V, C]
		wrongQuorum *WrongQuorumError[V, C]
		unavailable = make(map[C]bool)
	)
	err := forEach(ctx, c.peers, func(ctx context.Context, peer Peer[T, V, C]) error {
		accepted, err := peer.Get(ctx, q)
		mut.Lock()
		defer mut.Unlock()
		var wrong *WrongQuorumError[V, C]
		if errors.As(err, &wrong) {
			if wrong.Proposal == nil {
				// A legacy acceptor cannot say when it observed
				// the mismatch, so it cannot be arbitrated
				// against read values.
				return err
			}
			if wrongQuorum == nil || wrongQuorum.Proposal.Less(*wrong.Proposal) {
				wrongQuorum = wrong
			}
			reached++
			return nil
		}
		if err != nil {
			if c.absorb(err, peer.ID(), unavailable, &weakErr) {
				return nil
			}
			return err
		}
		if accepted != nil &&
			(res == nil || res.Proposal.Less(accepted.Proposal)) {
			res = accepted
		}
		reached++
		return nil
	})
	if err != nil {
		return none, err
	}
	if err := c.checkHeadcount(q, reached, weakErr, true); err != nil {
		return none, err
	}
	if wrongQuorum != nil && (res == nil || res.Proposal.Less(*wrongQuorum.Proposal)) {
		return none, wrongQuorum
	}
	if res != nil {
		return State[T, V, C]{Value: &res.Value, Quorum: q, Proposal: &res.Proposal}, nil
	}
	return State[T, V, C]{Quorum: q}, nil
}

// Get returns the current chosen value, or nil if none, discarding the
// rest of the State.
func (c *Client[T, V, C]) Get(ctx context.Context) (*T, error) {
	state, err := c.State(ctx)
	if err != nil {
		return nil, err
	}
	return state.Value, nil
}
