package collab

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func recvType(t *testing.T, s *Session) Message {
	t.Helper()
	select {
	case m := <-s.Outbound():
		return m
	default:
		t.Fatal("expected a queued message")
		return Message{}
	}
}

func TestRelayNeverEchoesToSender(t *testing.T) {
	reg := NewRegistry()
	relay := NewRelay(reg, nil)
	a := NewSession("a", false, 4)
	b := NewSession("b", false, 4)
	c := NewSession("c", true, 4)
	reg.Join("d1", a)
	reg.Join("d1", b)
	reg.Join("d1", c)

	delta := json.RawMessage(`{"insert":"hi"}`)
	relay.Broadcast(context.Background(), "d1", a, delta)

	// every member at send time except the sender receives the exact payload
	for _, peer := range []*Session{b, c} {
		m := recvType(t, peer)
		require.Equal(t, MsgReceiveChanges, m.Type)
		require.Equal(t, string(delta), string(m.Payload))
	}
	select {
	case m := <-a.Outbound():
		t.Fatalf("sender received its own delta: %+v", m)
	default:
	}
}

func TestRelayScopedToRoom(t *testing.T) {
	reg := NewRegistry()
	relay := NewRelay(reg, nil)
	a := NewSession("a", false, 4)
	other := NewSession("x", false, 4)
	reg.Join("d1", a)
	reg.Join("d2", other)

	relay.Broadcast(context.Background(), "d1", a, json.RawMessage(`{}`))

	select {
	case <-other.Outbound():
		t.Fatal("delta leaked across rooms")
	default:
	}
}

func TestRelayPreservesSenderOrder(t *testing.T) {
	reg := NewRegistry()
	relay := NewRelay(reg, nil)
	a := NewSession("a", false, 16)
	b := NewSession("b", false, 16)
	reg.Join("d1", a)
	reg.Join("d1", b)

	for i := 0; i < 5; i++ {
		p, _ := json.Marshal(map[string]int{"seq": i})
		relay.Broadcast(context.Background(), "d1", a, p)
	}
	for i := 0; i < 5; i++ {
		m := recvType(t, b)
		var got map[string]int
		require.NoError(t, json.Unmarshal(m.Payload, &got))
		require.Equal(t, i, got["seq"])
	}
}

func TestRelayHandleRemoteReachesWholeRoom(t *testing.T) {
	reg := NewRegistry()
	relay := NewRelay(reg, nil)
	a := NewSession("a", false, 4)
	b := NewSession("b", false, 4)
	reg.Join("d1", a)
	reg.Join("d1", b)

	relay.HandleRemote("d1", json.RawMessage(`{"remote":true}`))
	for _, peer := range []*Session{a, b} {
		m := recvType(t, peer)
		require.Equal(t, MsgReceiveChanges, m.Type)
	}
}
