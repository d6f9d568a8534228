package collab

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coscribe/coscribe/server/internal/document"
	"github.com/coscribe/coscribe/server/internal/document/service"
	"github.com/coscribe/coscribe/server/pkg/logger"
	"github.com/coscribe/coscribe/server/pkg/metrics"
)

// DefaultAutosaveInterval matches the editor client's save cadence.
const DefaultAutosaveInterval = 2 * time.Second

// Autosaver periodically reconciles each writable session's live content
// against its last persisted snapshot and flushes differences through the
// store's conditional update. Unchanged content produces zero store calls.
type Autosaver struct {
	store    service.Service
	interval time.Duration
}

func NewAutosaver(store service.Service, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{store: store, interval: interval}
}

// Arm starts the per-session flush loop. The loop stops when the session's
// autosave is cancelled at teardown; cancellation guarantees no further
// persistence attempt for the session.
func (a *Autosaver) Arm(s *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	s.setCancelSave(cancel)
	go a.run(ctx, s)
}

func (a *Autosaver) run(ctx context.Context, s *Session) {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.flush(ctx, s)
		}
	}
}

// flush performs one autosave cycle: dirty check, conditional write, and on
// conflict a refetch that rebases the session onto the current stored
// version. A conflicted cycle is skipped silently: the live content is still
// staged and retries on the next tick.
func (a *Autosaver) flush(ctx context.Context, s *Session) {
	if ctx.Err() != nil {
		return
	}
	docID := s.DocumentID()
	if docID == "" {
		return
	}
	raw, version, dirty := s.snapshot()
	if !dirty {
		return
	}
	var content interface{}
	if err := json.Unmarshal(raw, &content); err != nil {
		logger.Warnf("autosave: unreadable staged content for doc %s: %v", docID, err)
		return
	}
	d, err := a.store.ConditionalUpdate(ctx, docID, content, version, s.EditorID())
	switch {
	case err == nil:
		s.markSaved(raw, d.Version)
		metrics.SavesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, document.ErrConflict):
		metrics.SavesTotal.WithLabelValues("conflict").Inc()
		a.rebase(ctx, s, docID)
	case ctx.Err() != nil:
		// cancelled mid-flight during teardown; nothing was persisted
	default:
		// store unreachable or similar: durability is delayed, not lost
		metrics.SavesTotal.WithLabelValues("error").Inc()
		logger.Warnf("autosave: save failed for doc %s, retrying next cycle: %v", docID, err)
	}
}

// rebase refreshes the cached persisted snapshot after a conflict so the
// next cycle saves against the winner's version. A save is never retried
// blindly against the same stale version.
func (a *Autosaver) rebase(ctx context.Context, s *Session, docID string) {
	cur, err := a.store.Get(ctx, docID)
	if err != nil {
		logger.Warnf("autosave: rebase fetch failed for doc %s: %v", docID, err)
		return
	}
	raw, err := json.Marshal(cur.Content)
	if err != nil {
		logger.Warnf("autosave: rebase marshal failed for doc %s: %v", docID, err)
		return
	}
	s.rebase(raw, cur.Version)
	logger.Debugf("autosave: doc %s rebased to version %d after conflict", docID, cur.Version)
}
