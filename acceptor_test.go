package paxos

import (
	"context"
	"errors"
	"testing"
)

func TestAcceptorPromise(t *testing.T) {
	ctx := context.Background()
	q := NewQuorum(1, 2, 3)
	a := NewAcceptor[string, int, int](1, q)

	// A fresh acceptor promises and has nothing to report.
	r, err := a.Propose(ctx, q, Proposal[int, int]{Version: 1, Round: 1, Client: 100})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if r.Proposal != nil || r.Accepted != nil || r.Confirmed {
		t.Errorf("fresh acceptor reported state: %+v", r)
	}

	// A lower proposal is rejected and told what it lost to.
	r, err = a.Propose(ctx, q, Proposal[int, int]{Version: 1, Round: 1, Client: 50})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if r.Proposal == nil || *r.Proposal != (Proposal[int, int]{Version: 1, Round: 1, Client: 100}) {
		t.Errorf("lower proposal not told about the promise: %+v", r)
	}
}

func TestAcceptorAccept(t *testing.T) {
	ctx := context.Background()
	q := NewQuorum(1)
	a := NewAcceptor[string, int, int](1, q)

	p := Proposal[int, int]{Version: 1, Round: 1, Client: 100}
	if _, err := a.Propose(ctx, q, p); err != nil {
		t.Fatalf("propose: %v", err)
	}
	min, err := a.Accept(ctx, q, p, "X")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if min != p {
		t.Errorf("accepting peer returned minimum %v, want %v", min, p)
	}

	// A stale acceptation bounces off the minimum.
	stale := Proposal[int, int]{Version: 1, Round: 0, Client: 100}
	min, err = a.Accept(ctx, q, stale, "Y")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if min != p {
		t.Errorf("stale accept moved the minimum to %v", min)
	}
	if a.accepted.Value != "X" {
		t.Errorf("stale accept overwrote the value with %q", a.accepted.Value)
	}

	// The accepted value rides along in replies for the same version,
	// but not in rounds of a newer version.
	r, _ := a.Propose(ctx, q, Proposal[int, int]{Version: 1, Round: 2, Client: 100})
	if r.Accepted == nil || r.Accepted.Value != "X" || r.Accepted.Proposal != p {
		t.Errorf("same-version propose did not report the accepted value: %+v", r)
	}
	r, _ = a.Propose(ctx, q, Proposal[int, int]{Version: 2, Round: 1, Client: 100})
	if r.Accepted != nil {
		t.Errorf("newer-version propose reported a superseded value: %+v", r)
	}
}

func TestAcceptorConfirm(t *testing.T) {
	ctx := context.Background()
	q := NewQuorum(1)
	a := NewAcceptor[string, int, int](1, q)

	p := Proposal[int, int]{Version: 1, Round: 1, Client: 100}
	a.Accept(ctx, q, p, "X")

	// Confirming a proposal other than the accepted one is obsolete.
	other := Proposal[int, int]{Version: 1, Round: 7, Client: 100}
	if err := a.Confirm(ctx, q, other); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if a.confirmed {
		t.Errorf("obsolete confirmation marked the value chosen")
	}

	if err := a.Confirm(ctx, q, p); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !a.confirmed {
		t.Errorf("confirmation did not mark the value chosen")
	}
	r, _ := a.Propose(ctx, q, Proposal[int, int]{Version: 1, Round: 2, Client: 100})
	if !r.Confirmed {
		t.Errorf("confirmed value not reported as such")
	}
}

func TestAcceptorGet(t *testing.T) {
	ctx := context.Background()
	q := NewQuorum(1, 2)
	a := NewAcceptor[string, int, int](1, q)

	accepted, err := a.Get(ctx, q)
	if err != nil || accepted != nil {
		t.Fatalf("fresh get: %v, %v", accepted, err)
	}

	p := Proposal[int, int]{Version: 1, Round: 1, Client: 100}
	a.Accept(ctx, q, p, "X")
	accepted, err = a.Get(ctx, q)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if accepted == nil || accepted.Value != "X" || accepted.Proposal != p {
		t.Errorf("bad accepted %+v", accepted)
	}

	// A reconfigured acceptor refuses reads from stale quorums,
	// naming the proposal at which the membership changed.
	at := Proposal[int, int]{Version: 2, Round: 1, Client: 100}
	a.Reconfigure(NewQuorum(1, 2, 3), at)
	_, err = a.Get(ctx, q)
	var wrong *WrongQuorumError[int, int]
	if !errors.As(err, &wrong) {
		t.Fatalf("stale quorum read returned %v", err)
	}
	if wrong.Proposal == nil || *wrong.Proposal != at {
		t.Errorf("quorum mismatch at %v, want %v", wrong.Proposal, at)
	}

	// The new quorum reads fine.
	if _, err := a.Get(ctx, NewQuorum(1, 2, 3)); err != nil {
		t.Errorf("reconfigured get: %v", err)
	}
}
