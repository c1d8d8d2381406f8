package signaling

import (
	"errors"
	"testing"
)

func TestConnSend_FullQueueFailsFast(t *testing.T) {
	c := &conn{
		out:  make(chan outbound, 2),
		done: make(chan struct{}),
	}
	for i := 0; i < 2; i++ {
		if err := c.Send([]byte("x")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := c.Send([]byte("x")); !errors.Is(err, errSendQueueFull) {
		t.Fatalf("err=%v, want errSendQueueFull", err)
	}

	close(c.done)
	if err := c.Send([]byte("x")); !errors.Is(err, errConnClosed) {
		t.Fatalf("err=%v, want errConnClosed", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "relay", in: `{"type":"offer","sdp":"x"}`, want: "offer"},
		{name: "unknown kind", in: `{"type":"whatever"}`, want: "whatever"},
		{name: "not json", in: `type=offer`, wantErr: true},
		{name: "array", in: `[{"type":"offer"}]`, wantErr: true},
		{name: "null", in: `null`, wantErr: true},
		{name: "missing type", in: `{"sdp":"x"}`, wantErr: true},
		{name: "non-string type", in: `{"type":["offer"]}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields, typ, err := decodeEnvelope([]byte(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got type %q", typ)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if typ != tc.want || fields == nil {
				t.Fatalf("type=%q fields=%v", typ, fields)
			}
		})
	}
}

func TestJoinMessageDisplayName(t *testing.T) {
	if got := (joinMessage{}).displayName(); got != "Anonymous" {
		t.Fatalf("absent name=%q", got)
	}
	if got := (joinMessage{Name: ptr("")}).displayName(); got != "" {
		t.Fatalf("empty name=%q, want empty", got)
	}
}

func TestMessageKindBoundsLabels(t *testing.T) {
	if got := messageKind("offer"); got != "offer" {
		t.Fatalf("offer -> %q", got)
	}
	if got := messageKind("x-custom-123"); got != "other" {
		t.Fatalf("custom -> %q", got)
	}
}
