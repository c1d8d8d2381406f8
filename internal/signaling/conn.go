package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/room"
)

const (
	wsWriteWait = 1 * time.Second

	// sendQueueSize bounds the frames buffered for a slow client. Sends to a
	// full queue fail instead of blocking the sender.
	sendQueueSize = 256

	// closeGracePeriod bounds how long teardown waits for queued frames and
	// the close frame to be flushed.
	closeGracePeriod = 2 * time.Second
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendQueueFull  = errors.New("send queue full")
	errNotJSONObject  = errors.New("message is not a JSON object")
	errMissingMsgType = errors.New("message type missing or not a string")
)

type outbound struct {
	payload []byte

	close       bool
	closeCode   int
	closeReason string
}

// conn is one client connection. It implements room.Member.
//
// The read loop owns joined, closeQueued and all dispatch state. name and
// role are written once before the registry join and only read afterwards.
type conn struct {
	srv     *Server
	ws      *websocket.Conn
	log     *slog.Logger
	id      string
	roomID  string
	limiter *rate.Limiter

	name   string
	role   room.Role
	joined bool

	closeQueued bool

	out        chan outbound
	done       chan struct{}
	writerDone chan struct{}

	terminateOnce sync.Once
}

func newConn(s *Server, ws *websocket.Conn, roomID string) *conn {
	id := uuid.NewString()
	return &conn{
		srv:        s,
		ws:         ws,
		log:        s.log.With("session_id", id, "room_id", roomID),
		id:         id,
		roomID:     roomID,
		limiter:    ratelimit.NewMessageLimiter(s.cfg.MaxMessagesPerSecond),
		name:       defaultDisplayName,
		role:       room.RoleParticipant,
		out:        make(chan outbound, sendQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *conn) ID() string      { return c.id }
func (c *conn) Name() string    { return c.name }
func (c *conn) Role() room.Role { return c.role }

// Send queues payload for the writer. It never blocks.
func (c *conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.out <- outbound{payload: payload}:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *conn) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("failed to encode outbound message", "err", err)
		return
	}
	if err := c.Send(data); err != nil {
		c.log.Debug("dropped outbound message", "err", err)
	}
}

// fail reports message to the client and closes the connection once it has
// been flushed.
func (c *conn) fail(message string, closeCode int, closeReason string) {
	c.sendJSON(errorMessage{Type: MessageTypeError, Message: message})
	c.closeWith(closeCode, closeReason)
}

// closeWith queues a close frame behind any pending frames. If the queue is
// full the close frame is written immediately instead.
func (c *conn) closeWith(code int, reason string) {
	if c.closeQueued {
		return
	}
	select {
	case c.out <- outbound{close: true, closeCode: code, closeReason: reason}:
		c.closeQueued = true
	default:
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	}
}

// shutdown closes the connection from outside the read loop. The read loop
// then observes the error and runs the usual teardown.
func (c *conn) shutdown() {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(wsWriteWait))
	_ = c.ws.Close()
}

func (c *conn) writeLoop() {
	defer close(c.writerDone)

	ticker := time.NewTicker(c.srv.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			if msg.close {
				_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(msg.closeCode, msg.closeReason), time.Now().Add(wsWriteWait))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
				c.log.Debug("websocket write failed", "err", err)
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.log.Debug("websocket ping failed", "err", err)
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (c *conn) run() {
	defer c.terminate()
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("panic in signaling connection", "panic", rec, "stack", string(debug.Stack()))
			c.closeWith(websocket.CloseInternalServerErr, "internal error")
		}
	}()

	idle := c.srv.cfg.IdleTimeout
	c.ws.SetReadLimit(c.srv.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(idle))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				// gorilla has already sent CloseMessageTooBig.
				c.srv.metrics.FrameDropped(metrics.DropReasonTooLarge)
				c.log.Info("websocket message too large", "limit_bytes", c.srv.cfg.MaxMessageBytes)
			case isTimeout(err):
				c.log.Info("websocket idle timeout")
				c.closeWith(websocket.CloseNormalClosure, "idle timeout")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				c.log.Debug("websocket closed unexpectedly", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))

		// Enforce the rate limit after reading so the close code arrives
		// reliably instead of racing a half-read frame.
		if !c.limiter.Allow() {
			c.srv.metrics.FrameDropped(metrics.DropReasonRateLimited)
			c.log.Warn("signaling message rate exceeded", "limit_per_second", c.srv.cfg.MaxMessagesPerSecond)
			c.fail("rate limit exceeded", websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			c.srv.metrics.FrameDropped(metrics.DropReasonBinary)
			continue
		}

		c.dispatch(data)
		if c.closeQueued {
			return
		}
	}
}

// terminate leaves the room, notifies the remaining members and releases the
// connection. It runs exactly once.
func (c *conn) terminate() {
	c.terminateOnce.Do(func() {
		c.leave()

		if c.closeQueued {
			select {
			case <-c.writerDone:
			case <-time.After(closeGracePeriod):
			}
		}
		close(c.done)
		_ = c.ws.Close()
		<-c.writerDone

		c.srv.untrack(c)
		c.srv.metrics.ConnectionClosed()
		c.log.Debug("websocket disconnected")
	})
}

func (c *conn) leave() {
	if !c.joined {
		return
	}
	c.joined = false

	res := c.srv.registry.Leave(c.roomID, c.id)
	if !res.Removed {
		return
	}
	if res.RoomDeleted {
		c.srv.metrics.RoomDeleted()
		c.log.Info("room deleted")
		return
	}

	var notice any = peerEvent{Type: MessageTypePeerLeft, Name: c.name}
	if res.WasHost {
		notice = typeOnly{Type: MessageTypeHostLeft}
		c.log.Info("host left", "name", c.name)
	} else {
		c.log.Info("participant left", "name", c.name)
	}
	c.broadcast(res.Remaining, notice)
}

// broadcast encodes v once and sends it to each member. Failures are counted
// and skipped.
func (c *conn) broadcast(members []room.Member, v any) {
	if len(members) == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("failed to encode broadcast", "err", err)
		return
	}
	c.broadcastRaw(members, data)
}

func (c *conn) broadcastRaw(members []room.Member, data []byte) {
	res := room.Broadcast(members, data)
	c.srv.metrics.Deliveries(res.Delivered, res.Failed())
	for _, f := range res.Failures {
		c.log.Debug("broadcast delivery failed", "recipient", f.MemberID, "err", f.Err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
