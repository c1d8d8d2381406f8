package room

import (
	"strings"
	"time"
)

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// ParseRole maps a client-declared role to a Role. Anything other than "host"
// is a participant.
func ParseRole(raw string) Role {
	if strings.TrimSpace(raw) == string(RoleHost) {
		return RoleHost
	}
	return RoleParticipant
}

// MediaDefaults are the initial media states a host chooses for participants
// when creating a room. They are fixed for the lifetime of the room.
type MediaDefaults struct {
	MicMuted bool
	CamOff   bool
}

// Member is a connected session as seen by a room.
//
// Send must not block: implementations enqueue the payload for an
// asynchronous writer and report an error if that is not possible.
type Member interface {
	ID() string
	Name() string
	Role() Role
	Send(payload []byte) error
}

type room struct {
	id        string
	passcode  string
	defaults  MediaDefaults
	createdAt time.Time

	// hostID is the session ID of the current host, or "" when no host is
	// connected.
	hostID  string
	members []Member
}

func (r *room) indexOf(memberID string) int {
	for i, m := range r.members {
		if m.ID() == memberID {
			return i
		}
	}
	return -1
}

func (r *room) snapshot(keep Filter) []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		if keep == nil || keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (r *room) info() Info {
	return Info{
		ID:          r.id,
		HostPresent: r.hostID != "",
		HostID:      r.hostID,
		MemberCount: len(r.members),
		Defaults:    r.defaults,
		CreatedAt:   r.createdAt,
	}
}

// Info is a read-only view of a room.
type Info struct {
	ID          string
	HostPresent bool
	HostID      string
	MemberCount int
	Defaults    MediaDefaults
	CreatedAt   time.Time
}

// Filter selects members from a room snapshot.
type Filter func(Member) bool

func All() Filter { return nil }

func Except(memberID string) Filter {
	return func(m Member) bool { return m.ID() != memberID }
}

func ParticipantsExcept(memberID string) Filter {
	return func(m Member) bool { return m.ID() != memberID && m.Role() == RoleParticipant }
}
