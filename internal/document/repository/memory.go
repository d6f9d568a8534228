package repository

import (
	"context"
	"sync"
	"time"

	"github.com/coscribe/coscribe/server/internal/document"
)

// MemoryRepo is an in-memory repository used for unit tests and for running
// the service without a MongoDB. All operations are atomic under one mutex,
// which is exactly the compare-and-swap boundary ConditionalUpdate needs.
type MemoryRepo struct {
	mu    sync.Mutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

// FetchOrCreate returns the record for id, creating an empty one at version 0
// when absent. First writer wins under concurrent first access.
func (m *MemoryRepo) FetchOrCreate(ctx context.Context, id string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.store[id]; ok {
		return clone(d), nil
	}
	now := time.Now().UTC()
	d := &document.Document{
		ID:          id,
		Content:     map[string]interface{}{},
		Version:     0,
		LastEditors: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.store[id] = d
	return clone(d), nil
}

// ConditionalUpdate stores content only when the stored version still equals
// expectedVersion; on success the version is bumped by 1 and editorID (when
// non-empty) is recorded. A mismatch returns ErrConflict and leaves the
// record untouched.
func (m *MemoryRepo) ConditionalUpdate(ctx context.Context, id string, content interface{}, expectedVersion int64, editorID string) (*document.Document, error) {
	// a cancelled caller must not persist, matching the Mongo path
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	if d.Version != expectedVersion {
		return nil, document.ErrConflict
	}
	d.Content = content
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	d.LastEditors = document.TouchEditor(d.LastEditors, editorID)
	return clone(d), nil
}

// Upsert is the unconditional "fire and forget" save: it creates the record
// when missing and overwrites content when present, without any version
// check. Concurrent Upserts can silently lose updates (last writer wins);
// the version counter is not bumped on this path.
func (m *MemoryRepo) Upsert(ctx context.Context, id string, content interface{}, editorID string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	d, ok := m.store[id]
	if !ok {
		d = &document.Document{ID: id, Version: 0, LastEditors: []string{}, CreatedAt: now}
		m.store[id] = d
	}
	d.Content = content
	d.UpdatedAt = now
	d.LastEditors = document.TouchEditor(d.LastEditors, editorID)
	return clone(d), nil
}

// Get returns the record for id without side effects.
func (m *MemoryRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return clone(d), nil
}

// clone copies the record so callers cannot mutate the stored state. Content
// payloads are treated as immutable blobs and shared.
func clone(d *document.Document) *document.Document {
	cp := *d
	cp.LastEditors = append([]string(nil), d.LastEditors...)
	return &cp
}
