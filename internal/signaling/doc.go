// Package signaling serves the per-room WebSocket endpoint that meeting
// clients use to join rooms and exchange session negotiation messages.
//
// The server never inspects offer, answer, candidate or caption payloads. It
// admits members through a room.Registry, stamps relayed messages with the
// sender's display name and fans them out to the rest of the room.
package signaling
