package paxos

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
)

// A Proposal identifies one attempt by one client to choose a value.
// Proposals are totally ordered by (Version, Round, Client), and this
// order is what acceptors use to arbitrate between competing clients,
// so it must be the same on every participant.
type Proposal[V, C cmp.Ordered] struct {
	Version V // version of the value being chosen
	Round   int
	Client  C // client that generated this proposal
}

// Less returns true if proposal p is strictly lower than o.
func (p Proposal[V, C]) Less(o Proposal[V, C]) bool {
	if p.Version != o.Version {
		return p.Version < o.Version
	}
	if p.Round != o.Round {
		return p.Round < o.Round
	}
	return p.Client < o.Client
}

func (p Proposal[V, C]) String() string {
	return fmt.Sprintf("%v:%v:%v", p.Version, p.Round, p.Client)
}

// A Quorum is the set of client identities a phase is conducted against.
// All three phases of one protocol iteration use the same quorum.
type Quorum[C cmp.Ordered] map[C]struct{}

// NewQuorum builds a quorum from a list of identities.
func NewQuorum[C cmp.Ordered](ids ...C) Quorum[C] {
	q := make(Quorum[C], len(ids))
	for _, id := range ids {
		q[id] = struct{}{}
	}
	return q
}

// Has returns true if id is a member of the quorum.
func (q Quorum[C]) Has(id C) bool {
	_, ok := q[id]
	return ok
}

// Equal returns true if q and o contain exactly the same identities.
func (q Quorum[C]) Equal(o Quorum[C]) bool {
	if len(q) != len(o) {
		return false
	}
	for id := range q {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

func (q Quorum[C]) String() string {
	ids := make([]string, 0, len(q))
	for id := range q {
		ids = append(ids, fmt.Sprint(id))
	}
	sort.Strings(ids)
	return "{" + strings.Join(ids, ",") + "}"
}
