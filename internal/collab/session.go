package collab

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sync"
)

// Session is the ephemeral server-side state for one connected client. It is
// created at connection time, joined to at most one room, and owned by the
// gateway; the relay and the autosaver only reference it.
type Session struct {
	id       string
	readOnly bool

	out  chan Message
	done chan struct{}
	once sync.Once

	mu         sync.Mutex
	editorID   string
	docID      string
	live       json.RawMessage // latest full content received from the client
	saved      json.RawMessage // last snapshot known to be persisted
	version    int64           // version of the persisted snapshot
	cancelSave context.CancelFunc
}

// NewSession creates an unjoined session. editorID may be empty; buffer
// sizes the outbound queue.
func NewSession(editorID string, readOnly bool, buffer int) *Session {
	if buffer <= 0 {
		buffer = 256
	}
	return &Session{
		id:       newSessionID(),
		editorID: editorID,
		readOnly: readOnly,
		out:      make(chan Message, buffer),
		done:     make(chan struct{}),
	}
}

func newSessionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Session) ID() string     { return s.id }
func (s *Session) ReadOnly() bool { return s.readOnly }

// EditorID returns the identifier recorded in lastEditors for this session's
// saves. Falls back to the session id for anonymous writers.
func (s *Session) EditorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editorID != "" {
		return s.editorID
	}
	return s.id
}

// adoptEditorID fills in a client-supplied editor id, but never overrides an
// identity established at the transport handshake.
func (s *Session) adoptEditorID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editorID == "" {
		s.editorID = id
	}
}

// Send enqueues an outbound message without blocking. Delivery is
// best-effort: when the client cannot keep up the message is dropped.
func (s *Session) Send(m Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- m:
		return true
	default:
		return false
	}
}

// Outbound is drained by the connection's write loop.
func (s *Session) Outbound() <-chan Message { return s.out }

// Done is closed once the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// DocumentID returns the id of the joined document, or "" when unjoined.
func (s *Session) DocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docID
}

// bindDocument records the join and seeds both the live and the persisted
// snapshot caches from the loaded record, so the first autosave tick sees a
// clean session.
func (s *Session) bindDocument(docID string, content json.RawMessage, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docID = docID
	s.live = content
	s.saved = content
	s.version = version
}

// unbindDocument clears the join state on leave.
func (s *Session) unbindDocument() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := s.docID
	s.docID = ""
	return docID
}

// stage replaces the session's live content with a full snapshot received
// from the client. The autosaver flushes it on its next tick.
func (s *Session) stage(content json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = content
}

// snapshot returns the live content, the persisted base version, and whether
// the live content differs from the last persisted snapshot.
func (s *Session) snapshot() (json.RawMessage, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live, s.version, !jsonEqual(s.live, s.saved)
}

// markSaved records a successful flush.
func (s *Session) markSaved(content json.RawMessage, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = content
	s.version = version
}

// rebase re-anchors the persisted snapshot cache after a version conflict.
// Live content is kept: the unsaved edits retry against the new version.
func (s *Session) rebase(content json.RawMessage, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = content
	s.version = version
}

func (s *Session) setCancelSave(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelSave = cancel
}

// cancelAutosave stops the flush loop. Safe to call repeatedly or when the
// session was never armed.
func (s *Session) cancelAutosave() {
	s.mu.Lock()
	cancel := s.cancelSave
	s.cancelSave = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// jsonEqual compares two opaque payloads structurally: a byte-identical fast
// path, then a decode and deep compare so formatting differences do not
// trigger spurious saves.
func jsonEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
