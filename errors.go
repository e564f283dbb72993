package paxos

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrUnavailable reports that a peer could not be reached or responded
// that it is temporarily unable to participate. It is isolated per
// peer: the client excludes the peer from the remaining phases of the
// current iteration and carries on with the others.
var ErrUnavailable = errors.New("peer unavailable")

// A WeakError wraps an opaque peer-originated error that is neither an
// unavailability nor a quorum mismatch. The client accounts for it like
// ErrUnavailable but remembers the first one seen: if the headcount
// later fails, the wrapped error is returned in place of
// TooFewPeersError, preserving the original diagnostic.
type WeakError struct {
	Err error
}

func (e *WeakError) Error() string {
	return fmt.Sprintf("weak peer error: %v", e.Err)
}

func (e *WeakError) Unwrap() error {
	return e.Err
}

// A TooFewPeersError reports that too few acceptors answered a phase to
// reach a majority. It is terminal for the current operation; the
// caller may retry once more peers become available.
type TooFewPeersError struct {
	Reached int // peers that answered the phase
	Total   int // quorum size
}

func (e *TooFewPeersError) Error() string {
	return fmt.Sprintf("too few peers are available to reach consensus: %v of %v",
		e.Reached, e.Total)
}

// A WrongQuorumError reports that an acceptor's view of the group
// membership disagrees with the quorum the client passed. Proposal is
// the proposal at which the acceptor observed the reconfiguration, and
// is nil when the acceptor cannot date it: a legacy acceptor that does
// not track it, or an Acceptor whose view is still the one it was
// created with. The caller should refresh its peer list and retry.
type WrongQuorumError[V, C cmp.Ordered] struct {
	Proposal *Proposal[V, C]
}

func (e *WrongQuorumError[V, C]) Error() string {
	if e.Proposal == nil {
		return "quorum mismatch"
	}
	return fmt.Sprintf("quorum mismatch at proposal %v", e.Proposal)
}
