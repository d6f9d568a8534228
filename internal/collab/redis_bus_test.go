package collab

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBusCrossInstanceDelivery(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	pub := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	sub := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	require.NotEqual(t, pub.Origin(), sub.Origin())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan BusMessage, 1)
	go sub.Subscribe(ctx, func(docID string, payload json.RawMessage) {
		got <- BusMessage{DocID: docID, Payload: payload}
	})
	// give the subscriber a moment to register
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pub.Publish(ctx, "d1", json.RawMessage(`{"insert":"hi"}`)))

	select {
	case bm := <-got:
		require.Equal(t, "d1", bm.DocID)
		require.JSONEq(t, `{"insert":"hi"}`, string(bm.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive the published delta")
	}
}

func TestRedisBusSkipsOwnMessages(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bus := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	go bus.Subscribe(ctx, func(docID string, payload json.RawMessage) {
		got <- docID
	})
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "d1", json.RawMessage(`{}`)))

	select {
	case id := <-got:
		t.Fatalf("instance received its own publish for doc %s", id)
	case <-time.After(200 * time.Millisecond):
	}
}
