// Package room holds the in-memory room registry used by the signaling server.
//
// A room is created by the first host-role joiner and destroyed the instant
// its member list becomes empty. All read-modify-write sequences on room state
// (existence check + creation, host check + claim, removal + deletion) run
// under a single registry lock, so two concurrent first joiners can never both
// create the same room and a room never has more than one host.
//
// Rooms hold non-owning references to their members. A member's lifetime is
// governed by its connection; the connection's termination path is the only
// caller of Registry.Leave for that member.
package room
