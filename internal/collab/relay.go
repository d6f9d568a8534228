package collab

import (
	"context"
	"encoding/json"

	"github.com/coscribe/coscribe/server/pkg/logger"
	"github.com/coscribe/coscribe/server/pkg/metrics"
)

// Relay fans an edit delta out to every other session in the sender's room.
// The payload is forwarded verbatim: no transformation, merging or
// inspection. Delivery is best-effort; each sender's deltas reach each
// recipient in emission order because the sender's read loop is the only
// caller and recipient queues are FIFO.
type Relay struct {
	reg *Registry
	bus *RedisBus // optional cross-instance fan-out, may be nil
}

func NewRelay(reg *Registry, bus *RedisBus) *Relay {
	return &Relay{reg: reg, bus: bus}
}

// Broadcast delivers delta to the sender's room peers, never back to the
// sender, and publishes it for rooms hosted on other instances.
func (r *Relay) Broadcast(ctx context.Context, docID string, from *Session, delta json.RawMessage) {
	r.deliver(docID, from, delta)
	if r.bus != nil {
		if err := r.bus.Publish(ctx, docID, delta); err != nil {
			logger.Warnf("bus publish failed for doc %s: %v", docID, err)
		}
	}
}

// HandleRemote delivers a delta that arrived over the bus from another
// instance. Every local room member receives it; the original sender is not
// connected here.
func (r *Relay) HandleRemote(docID string, delta json.RawMessage) {
	r.deliver(docID, nil, delta)
}

func (r *Relay) deliver(docID string, from *Session, delta json.RawMessage) {
	msg := Message{Type: MsgReceiveChanges, Payload: delta}
	for _, peer := range r.reg.Peers(docID, from) {
		if peer.Send(msg) {
			metrics.DeltasRelayed.Inc()
		} else {
			metrics.DeltasDropped.Inc()
		}
	}
}
