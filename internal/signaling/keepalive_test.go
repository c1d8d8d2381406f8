package signaling

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSignaling_IdleTimeoutClosesWithoutPong(t *testing.T) {
	_, ts := startServer(t, Config{
		IdleTimeout:  500 * time.Millisecond,
		PingInterval: 50 * time.Millisecond,
	})
	c := dial(t, ts, "R1")

	pingSeen := make(chan struct{}, 1)
	c.SetPingHandler(func(string) error {
		select {
		case pingSeen <- struct{}{}:
		default:
		}
		// No pong.
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.ReadMessage()
		errCh <- err
	}()

	select {
	case <-pingSeen:
	case err := <-errCh:
		t.Fatalf("connection closed before receiving ping: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server ping")
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected server to close the websocket")
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("expected close normal closure, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server to close idle websocket")
	}
}

func TestWebSocketSignaling_PongKeepsConnectionOpenBeyondIdleTimeout(t *testing.T) {
	_, ts := startServer(t, Config{
		IdleTimeout:  500 * time.Millisecond,
		PingInterval: 50 * time.Millisecond,
	})
	c := dial(t, ts, "R1")

	pingSeen := make(chan struct{}, 1)
	c.SetPingHandler(func(appData string) error {
		select {
		case pingSeen <- struct{}{}:
		default:
		}
		return c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(1*time.Second))
	})

	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.ReadMessage()
		errCh <- err
	}()

	select {
	case <-pingSeen:
	case err := <-errCh:
		t.Fatalf("connection closed before receiving ping: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server ping")
	}

	select {
	case err := <-errCh:
		t.Fatalf("connection closed despite pongs: %v", err)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestWebSocketSignaling_IdleHostLeavesRoom(t *testing.T) {
	srv, ts := startServer(t, Config{
		IdleTimeout:  300 * time.Millisecond,
		PingInterval: 50 * time.Millisecond,
	})
	c := joinHost(t, ts, "R1", "Alice", joinOpts{})
	c.SetPingHandler(func(string) error { return nil })

	expectClose(t, c, websocket.CloseNormalClosure)
	waitFor(t, func() bool { return srv.Registry().Len() == 0 }, "idle host to leave")
}
