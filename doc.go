// Package paxos implements the client (proposer) side of single-decree
// Paxos consensus for client-driven agreement on one value per version.
//
// A Client drives the classic two-phase protocol, plus a confirmation
// round, against a group of acceptors reached through the Peer interface:
// it prepares a proposal, collects promises, re-proposes any value an
// acceptor has already accepted, and confirms once a majority has
// accepted. Conflicting proposers are handled by version/round escalation
// with randomized exponential backoff, so any number of clients may
// safely compete to choose a value at the same version.
//
// Only acceptors hold persistent state; a Client is ephemeral and may be
// discarded or recreated freely. The package also provides an in-memory
// Acceptor honoring the Peer contract, usable directly for local groups
// and as the reference implementation for transport-backed peers.
package paxos
