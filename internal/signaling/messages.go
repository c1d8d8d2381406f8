package signaling

import "encoding/json"

// Inbound message types with server-side handling. Every other type is relayed
// as-is to the rest of the room.
const (
	MessageTypeJoin        = "join"
	MessageTypeHostControl = "host-control"
	MessageTypeChat        = "chat"
)

// Outbound message types originated by the server.
const (
	MessageTypeError        = "error"
	MessageTypeJoinAccepted = "join-accepted"
	MessageTypeWaitForHost  = "wait-for-host"
	MessageTypeHostJoined   = "host-joined"
	MessageTypeHostLeft     = "host-left"
	MessageTypePeerJoined   = "peer-joined"
	MessageTypePeerLeft     = "peer-left"
)

const (
	defaultDisplayName = "Anonymous"

	// senderNameField is injected into every relayed message.
	senderNameField = "senderName"
)

type joinMessage struct {
	Name     *string `json:"name"`
	Role     string  `json:"role"`
	Passcode string  `json:"passcode"`

	ParticipantMicInitiallyMuted bool `json:"participantMicInitiallyMuted"`
	ParticipantCamInitiallyOff   bool `json:"participantCamInitiallyOff"`
}

func (m joinMessage) displayName() string {
	if m.Name == nil {
		return defaultDisplayName
	}
	return *m.Name
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// joinAccepted carries the media flags only for participants; hosts get
// just isHost and name.
type joinAccepted struct {
	Type   string `json:"type"`
	IsHost bool   `json:"isHost"`
	Name   string `json:"name"`

	ParticipantMicInitiallyMuted *bool `json:"participantMicInitiallyMuted,omitempty"`
	ParticipantCamInitiallyOff   *bool `json:"participantCamInitiallyOff,omitempty"`
}

// typeOnly covers wait-for-host, host-joined and host-left.
type typeOnly struct {
	Type string `json:"type"`
}

// peerEvent covers peer-joined and peer-left.
type peerEvent struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type hostControl struct {
	Type   string          `json:"type"`
	Action json.RawMessage `json:"action"`
	From   string          `json:"from"`
}

type chatMessage struct {
	Type      string          `json:"type"`
	From      json.RawMessage `json:"from"`
	Text      json.RawMessage `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
}

var (
	jsonNull        = json.RawMessage("null")
	jsonEmptyString = json.RawMessage(`""`)
	jsonZero        = json.RawMessage("0")
)

func ptr[T any](v T) *T { return &v }

// rawOr returns fields[key], or fallback when the key is absent.
func rawOr(fields map[string]json.RawMessage, key string, fallback json.RawMessage) json.RawMessage {
	if v, ok := fields[key]; ok {
		return v
	}
	return fallback
}
