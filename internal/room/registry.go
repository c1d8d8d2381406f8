package room

import (
	"sync"
	"time"
)

type Outcome int

const (
	// OutcomeCreated: the room did not exist and the joining host created it.
	OutcomeCreated Outcome = iota + 1
	// OutcomeHostJoined: an existing room without a host gained one.
	OutcomeHostJoined
	// OutcomeWaiting: a participant joined a room with no host present.
	OutcomeWaiting
	// OutcomeAdmitted: a participant joined a room with a host present.
	OutcomeAdmitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeHostJoined:
		return "host_joined"
	case OutcomeWaiting:
		return "waiting"
	case OutcomeAdmitted:
		return "admitted"
	default:
		return "unknown"
	}
}

type JoinRequest struct {
	RoomID   string
	Passcode string
	Member   Member
	// Defaults is only used when the join creates the room.
	Defaults MediaDefaults

	// OnAdmit, if set, runs after the member has been added and before the
	// registry lock is released. It lets callers enqueue the join reply ahead
	// of any message another member might broadcast to the newcomer. It must
	// not block and must not call back into the Registry.
	OnAdmit func(JoinResult)
}

type JoinResult struct {
	Outcome  Outcome
	Defaults MediaDefaults
	// Others is the member list, excluding the joiner, at the moment of the
	// join.
	Others []Member
}

type LeaveResult struct {
	Removed     bool
	WasHost     bool
	RoomDeleted bool
	Remaining   []Member
}

type Config struct {
	// MaxMembers caps the member count per room. Zero means unlimited.
	MaxMembers int

	Now func() time.Time
}

// Registry owns every room in the process. Construct one per server and pass
// it to each connection.
type Registry struct {
	cfg Config

	mu    sync.Mutex
	rooms map[string]*room
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:   cfg,
		rooms: make(map[string]*room),
	}
}

// Join admits req.Member to req.RoomID, creating the room when the member is
// a host and the room does not exist. On rejection the registry is left
// unchanged.
func (r *Registry) Join(req JoinRequest) (JoinResult, error) {
	role := req.Member.Role()

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[req.RoomID]
	if !ok {
		if role != RoleHost {
			return JoinResult{}, ErrHostRequired
		}
		rm = &room{
			id:        req.RoomID,
			passcode:  req.Passcode,
			defaults:  req.Defaults,
			createdAt: r.cfg.Now(),
			hostID:    req.Member.ID(),
			members:   []Member{req.Member},
		}
		r.rooms[req.RoomID] = rm
		res := JoinResult{Outcome: OutcomeCreated, Defaults: rm.defaults, Others: []Member{}}
		if req.OnAdmit != nil {
			req.OnAdmit(res)
		}
		return res, nil
	}

	if rm.passcode != req.Passcode {
		return JoinResult{}, ErrPasscodeMismatch
	}
	if role == RoleHost && rm.hostID != "" {
		return JoinResult{}, ErrHostAlreadyPresent
	}
	if rm.indexOf(req.Member.ID()) >= 0 {
		return JoinResult{}, ErrAlreadyMember
	}
	if r.cfg.MaxMembers > 0 && len(rm.members) >= r.cfg.MaxMembers {
		return JoinResult{}, ErrRoomFull
	}

	others := rm.snapshot(nil)
	rm.members = append(rm.members, req.Member)

	res := JoinResult{Defaults: rm.defaults, Others: others}
	switch {
	case role == RoleHost:
		rm.hostID = req.Member.ID()
		res.Outcome = OutcomeHostJoined
	case rm.hostID == "":
		res.Outcome = OutcomeWaiting
	default:
		res.Outcome = OutcomeAdmitted
	}
	if req.OnAdmit != nil {
		req.OnAdmit(res)
	}
	return res, nil
}

// Leave removes memberID from roomID. If the member was the host, host state
// is cleared. The room is deleted when its last member leaves. Leaving a room
// the member is not in is a no-op.
func (r *Registry) Leave(roomID, memberID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}
	}
	i := rm.indexOf(memberID)
	if i < 0 {
		return LeaveResult{}
	}

	rm.members = append(rm.members[:i:i], rm.members[i+1:]...)

	res := LeaveResult{Removed: true}
	if rm.hostID == memberID {
		rm.hostID = ""
		res.WasHost = true
	}
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		res.RoomDeleted = true
		return res
	}
	res.Remaining = rm.snapshot(nil)
	return res
}

// Members returns a snapshot of roomID's members selected by keep, in join
// order. A nil filter selects everyone.
func (r *Registry) Members(roomID string, keep Filter) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.snapshot(keep)
}

func (r *Registry) Lookup(roomID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Info{}, false
	}
	return rm.info(), true
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Stats returns the number of live rooms and the total member count across
// them.
func (r *Registry) Stats() (rooms, members int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rm := range r.rooms {
		members += len(rm.members)
	}
	return len(r.rooms), members
}
