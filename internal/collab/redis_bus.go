package collab

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/coscribe/coscribe/server/pkg/logger"
)

// BusMessage is the wire format on the Redis pub/sub channels. Origin tags
// the publishing instance so subscribers can skip their own messages (local
// fan-out already happened synchronously).
type BusMessage struct {
	DocID   string          `json:"docId"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBus relays deltas between service instances over Redis pub/sub, one
// channel per document id.
type RedisBus struct {
	rdb    *redis.Client
	origin string
}

// NewRedisBus wraps an already-connected client. The caller owns the client
// lifecycle.
func NewRedisBus(rdb *redis.Client) *RedisBus {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return &RedisBus{rdb: rdb, origin: hex.EncodeToString(b)}
}

// Origin returns this instance's bus identity.
func (b *RedisBus) Origin() string { return b.origin }

// Publish sends a delta to the document's channel.
func (b *RedisBus) Publish(ctx context.Context, docID string, payload json.RawMessage) error {
	raw, err := json.Marshal(BusMessage{DocID: docID, Origin: b.origin, Payload: payload})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(docID), raw).Err()
}

// Subscribe listens on all document channels and invokes fn for every delta
// published by other instances. Blocks until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(docID string, payload json.RawMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	defer func() { _ = pubsub.Close() }()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var bm BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				logger.Warnf("bus: dropping malformed message: %v", err)
				continue
			}
			if bm.DocID == "" || bm.Origin == b.origin {
				continue
			}
			fn(bm.DocID, bm.Payload)
		}
	}
}

func channel(docID string) string { return "doc:" + docID }
