package collab

import (
	"context"
	"encoding/json"

	"github.com/coscribe/coscribe/server/internal/document/service"
	"github.com/coscribe/coscribe/server/pkg/logger"
	"github.com/coscribe/coscribe/server/pkg/metrics"
)

// Gateway owns session lifecycle: it joins sessions to rooms on
// get-document, routes their notifications, and releases every per-session
// resource on teardown.
type Gateway struct {
	store service.Service
	reg   *Registry
	relay *Relay
	saver *Autosaver
}

func NewGateway(store service.Service, reg *Registry, relay *Relay, saver *Autosaver) *Gateway {
	return &Gateway{store: store, reg: reg, relay: relay, saver: saver}
}

// Registry exposes the room registry for readiness checks and tests.
func (g *Gateway) Registry() *Registry { return g.reg }

// HandleMessage processes one inbound notification for s. Unknown types are
// ignored.
func (g *Gateway) HandleMessage(ctx context.Context, s *Session, m Message) {
	switch m.Type {
	case MsgGetDocument:
		g.handleGetDocument(ctx, s, m.Payload)
	case MsgSendChanges:
		g.handleSendChanges(ctx, s, m.Payload)
	case MsgSaveDocument:
		g.handleSaveDocument(ctx, s, m.Payload)
	default:
		logger.Debugf("session %s: ignoring message type %q", s.ID(), m.Type)
	}
}

// handleGetDocument loads (or lazily creates) the document, joins the
// session to its room, sends the initial snapshot exactly once, and arms the
// autosaver for writable sessions. On store failure the session gets an
// error notification and is not joined to any room.
func (g *Gateway) handleGetDocument(ctx context.Context, s *Session, payload json.RawMessage) {
	var req GetDocumentPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		s.Send(errorMessage("document id required"))
		return
	}
	if req.EditorID != "" {
		s.adoptEditorID(req.EditorID)
	}

	// a session is in at most one room; a re-join releases the old one first
	if prev := s.DocumentID(); prev != "" {
		s.cancelAutosave()
		g.reg.Leave(prev, s)
		s.unbindDocument()
	}

	doc, err := g.store.FetchOrCreate(ctx, req.ID)
	if err != nil {
		logger.Errorf("session %s: load failed for doc %s: %v", s.ID(), req.ID, err)
		s.Send(errorMessage("failed to load document"))
		return
	}
	raw, err := json.Marshal(doc.Content)
	if err != nil {
		logger.Errorf("session %s: snapshot marshal failed for doc %s: %v", s.ID(), req.ID, err)
		s.Send(errorMessage("failed to load document"))
		return
	}

	s.bindDocument(req.ID, raw, doc.Version)
	g.reg.Join(req.ID, s)
	s.Send(loadMessage(doc.Content, doc.Version))
	if !s.ReadOnly() {
		g.saver.Arm(s)
	}
	logger.Debugf("session %s joined doc %s at version %d (readOnly=%v)", s.ID(), req.ID, doc.Version, s.ReadOnly())
}

// handleSendChanges relays a delta to room peers. Read-only and unjoined
// sessions never emit.
func (g *Gateway) handleSendChanges(ctx context.Context, s *Session, payload json.RawMessage) {
	if s.ReadOnly() {
		return
	}
	docID := s.DocumentID()
	if docID == "" {
		return
	}
	if len(payload) == 0 || !json.Valid(payload) {
		s.Send(errorMessage("malformed delta"))
		return
	}
	g.relay.Broadcast(ctx, docID, s, payload)
}

// handleSaveDocument persists a full content snapshot through the
// unconditional save path, immediately. On success the session's caches are
// refreshed so the autosaver sees a clean session; on store failure the
// snapshot stays staged and the autosaver's conditional flush retries it.
func (g *Gateway) handleSaveDocument(ctx context.Context, s *Session, payload json.RawMessage) {
	docID := s.DocumentID()
	if s.ReadOnly() || docID == "" {
		return
	}
	if len(payload) == 0 || !json.Valid(payload) {
		s.Send(errorMessage("malformed content"))
		return
	}
	s.stage(payload)
	var content interface{}
	if err := json.Unmarshal(payload, &content); err != nil {
		s.Send(errorMessage("malformed content"))
		return
	}
	d, err := g.store.Upsert(ctx, docID, content, s.EditorID())
	if err != nil {
		metrics.SavesTotal.WithLabelValues("error").Inc()
		logger.Warnf("session %s: save failed for doc %s, retrying next cycle: %v", s.ID(), docID, err)
		return
	}
	s.markSaved(payload, d.Version)
	metrics.SavesTotal.WithLabelValues("ok").Inc()
}

// Teardown releases everything the session holds: the autosave loop is
// cancelled before the room binding is removed, so no persistence attempt
// fires after disconnect. Calling it twice is a no-op.
func (g *Gateway) Teardown(s *Session) {
	s.cancelAutosave()
	if docID := s.DocumentID(); docID != "" {
		g.reg.Leave(docID, s)
		s.unbindDocument()
	}
	s.close()
}
