// Package test contains shareable code for testing consensus clients.
// It lives in its own package so that other peer implementations can
// reuse the harness without pulling test code into development builds.
package test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dedis/paxos"
)

// An Order records the value chosen at each version as concurrent
// clients report their outcomes, and fails the test on disagreement.
type Order struct {
	mut    sync.Mutex
	chosen map[int]string
}

// Chosen records that a client observed value chosen at version,
// and checks the observation against every earlier one.
func (o *Order) Chosen(t *testing.T, version int, value string) {
	o.mut.Lock()
	defer o.mut.Unlock()

	if o.chosen == nil {
		o.chosen = make(map[int]string)
	}
	prev, ok := o.chosen[version]
	switch {
	case !ok:
		o.chosen[version] = value
	case prev != value:
		t.Errorf("UNSAFE at version %v:\n%q\n%q", version, value, prev)
	}
}

// Group creates n in-memory acceptors forming one consensus group,
// returned as the peer list a client takes.
func Group(n int) []paxos.Peer[string, int, int] {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	q := paxos.NewQuorum(ids...)
	peers := make([]paxos.Peer[string, int, int], n)
	for i := range peers {
		peers[i] = paxos.NewAcceptor[string, int, int](i, q)
	}
	return peers
}

// Run drives ncli concurrent clients, each proposing its own value,
// through nver successive versions against a fresh group of n
// acceptors. Every client reports the value it saw win each version to
// a shared Order, so any safety violation surfaces as a disagreement.
func Run(t *testing.T, n, ncli, nver int) {
	desc := fmt.Sprintf("N=%v,Clients=%v,Versions=%v", n, ncli, nver)
	t.Run(desc, func(t *testing.T) {
		peers := Group(n)
		order := &Order{}
		for version := 1; version <= nver; version++ {
			wg := &sync.WaitGroup{}
			for i := 0; i < ncli; i++ {
				wg.Add(1)
				go func(cli int) {
					defer wg.Done()

					c := paxos.NewClient[string, int, int](100+cli, peers)
					value := fmt.Sprintf("client %v version %v", cli, version)
					choice, err := c.ChooseAt(context.Background(), version, value)
					if err != nil {
						t.Errorf("client %v version %v: %v", cli, version, err)
						return
					}
					if choice.Conflicted {
						value = *choice.Value
					}
					order.Chosen(t, version, value)
				}(i)
			}
			wg.Wait()

			// The read path must agree with what the choosers saw.
			c := paxos.NewClient[string, int, int](99, peers)
			state, err := c.State(context.Background())
			if err != nil {
				t.Fatalf("state at version %v: %v", version, err)
			}
			if state.Value == nil {
				t.Fatalf("no value chosen at version %v", version)
			}
			order.Chosen(t, state.Proposal.Version, *state.Value)
		}
	})
}
