package room

import "errors"

var (
	// ErrHostRequired is returned when a non-host tries to join a room that
	// does not exist yet. Only a host may create a room.
	ErrHostRequired       = errors.New("room does not exist and only a host can create it")
	ErrPasscodeMismatch   = errors.New("invalid passcode")
	ErrHostAlreadyPresent = errors.New("host already present")
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyMember      = errors.New("already a member of this room")
)

// ClientMessage returns the message surfaced to a client whose join was
// rejected with err.
func ClientMessage(err error) string {
	switch {
	case errors.Is(err, ErrHostRequired):
		return "Room does not exist. Only a host can create it."
	case errors.Is(err, ErrPasscodeMismatch):
		return "Invalid passcode"
	case errors.Is(err, ErrHostAlreadyPresent):
		return "A host is already in this meeting"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrAlreadyMember):
		return "Already joined"
	default:
		return "Unable to join room"
	}
}

// RejectReason returns a short, stable label for err suitable for metrics.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrHostRequired):
		return "host_required"
	case errors.Is(err, ErrPasscodeMismatch):
		return "passcode_mismatch"
	case errors.Is(err, ErrHostAlreadyPresent):
		return "host_already_present"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	default:
		return "other"
	}
}
