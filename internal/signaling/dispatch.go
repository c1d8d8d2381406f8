package signaling

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/room"
)

// decodeEnvelope parses a client frame into its top-level fields and type.
func decodeEnvelope(data []byte) (map[string]json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, "", err
	}
	if fields == nil {
		return nil, "", errNotJSONObject
	}
	var typ string
	raw, ok := fields["type"]
	if !ok || json.Unmarshal(raw, &typ) != nil {
		return nil, "", errMissingMsgType
	}
	return fields, typ, nil
}

func (c *conn) dispatch(data []byte) {
	fields, typ, err := decodeEnvelope(data)
	if err != nil {
		c.srv.metrics.FrameDropped(metrics.DropReasonMalformed)
		c.log.Debug("dropped malformed message", "err", err)
		return
	}

	if typ == MessageTypeJoin {
		if c.joined {
			c.srv.metrics.FrameDropped(metrics.DropReasonRejoin)
			return
		}
		c.handleJoin(data)
		return
	}
	if !c.joined {
		c.srv.metrics.FrameDropped(metrics.DropReasonUnjoined)
		return
	}

	c.srv.metrics.Message(messageKind(typ))
	switch typ {
	case MessageTypeHostControl:
		c.handleHostControl(fields)
	case MessageTypeChat:
		c.handleChat(fields)
	default:
		c.handleRelay(fields)
	}
}

// messageKind bounds the metrics label set: relay types are client-chosen.
func messageKind(typ string) string {
	switch typ {
	case MessageTypeHostControl, MessageTypeChat, "offer", "answer", "ice", "ice-candidate", "caption":
		return typ
	default:
		return "other"
	}
}

func (c *conn) handleJoin(data []byte) {
	var msg joinMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.srv.metrics.FrameDropped(metrics.DropReasonMalformed)
		c.log.Debug("dropped malformed join", "err", err)
		return
	}
	c.name = msg.displayName()
	c.role = room.ParseRole(msg.Role)

	res, err := c.srv.registry.Join(room.JoinRequest{
		RoomID:   c.roomID,
		Passcode: msg.Passcode,
		Member:   c,
		Defaults: room.MediaDefaults{
			MicMuted: msg.ParticipantMicInitiallyMuted,
			CamOff:   msg.ParticipantCamInitiallyOff,
		},
		// The reply is queued under the registry lock so it always precedes
		// broadcasts from members who see this session first.
		OnAdmit: func(res room.JoinResult) {
			c.sendJSON(c.joinReply(res))
		},
	})
	if err != nil {
		reason := room.RejectReason(err)
		c.srv.metrics.JoinRejected(reason)
		c.log.Info("join rejected", "name", c.name, "role", c.role, "reason", reason)
		c.fail(room.ClientMessage(err), websocket.ClosePolicyViolation, reason)
		return
	}

	c.joined = true
	c.srv.metrics.Join(res.Outcome.String())
	c.srv.metrics.Message(MessageTypeJoin)
	c.log.Info("joined room", "name", c.name, "role", c.role, "outcome", res.Outcome.String())

	switch res.Outcome {
	case room.OutcomeCreated:
		c.srv.metrics.RoomCreated()
	case room.OutcomeHostJoined:
		c.broadcast(res.Others, typeOnly{Type: MessageTypeHostJoined})
	case room.OutcomeAdmitted:
		c.broadcast(res.Others, peerEvent{Type: MessageTypePeerJoined, Name: c.name})
	}
}

func (c *conn) joinReply(res room.JoinResult) any {
	switch res.Outcome {
	case room.OutcomeCreated, room.OutcomeHostJoined:
		return joinAccepted{Type: MessageTypeJoinAccepted, IsHost: true, Name: c.name}
	case room.OutcomeWaiting:
		return typeOnly{Type: MessageTypeWaitForHost}
	default:
		return joinAccepted{
			Type:                         MessageTypeJoinAccepted,
			IsHost:                       false,
			Name:                         c.name,
			ParticipantMicInitiallyMuted: ptr(res.Defaults.MicMuted),
			ParticipantCamInitiallyOff:   ptr(res.Defaults.CamOff),
		}
	}
}

// handleHostControl forwards a host directive to every participant. Only the
// current host may issue one; anything else is dropped.
func (c *conn) handleHostControl(fields map[string]json.RawMessage) {
	if c.role != room.RoleHost {
		c.log.Debug("ignored host-control from participant")
		return
	}
	c.broadcast(c.srv.registry.Members(c.roomID, room.ParticipantsExcept(c.id)), hostControl{
		Type:   MessageTypeHostControl,
		Action: rawOr(fields, "action", jsonNull),
		From:   "host",
	})
}

// handleChat echoes a chat line to the whole room, sender included.
func (c *conn) handleChat(fields map[string]json.RawMessage) {
	from, ok := fields["from"]
	if !ok {
		from, _ = json.Marshal(c.name)
	}
	c.broadcast(c.srv.registry.Members(c.roomID, room.All()), chatMessage{
		Type:      MessageTypeChat,
		From:      from,
		Text:      rawOr(fields, "text", jsonEmptyString),
		Timestamp: rawOr(fields, "timestamp", jsonZero),
	})
}

// handleRelay forwards an opaque message to the rest of the room with the
// sender's display name attached.
func (c *conn) handleRelay(fields map[string]json.RawMessage) {
	name, err := json.Marshal(c.name)
	if err != nil {
		return
	}
	fields[senderNameField] = name
	c.broadcast(c.srv.registry.Members(c.roomID, room.Except(c.id)), fields)
}
