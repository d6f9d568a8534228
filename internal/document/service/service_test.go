package service

import (
	"context"
	"testing"

	"github.com/coscribe/coscribe/server/internal/document"
)

func TestServiceRejectsEmptyID(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	if _, err := svc.FetchOrCreate(ctx, ""); err != document.ErrInvalidID {
		t.Fatalf("FetchOrCreate: expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.ConditionalUpdate(ctx, "", nil, 0, ""); err != document.ErrInvalidID {
		t.Fatalf("ConditionalUpdate: expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.Upsert(ctx, "", nil, ""); err != document.ErrInvalidID {
		t.Fatalf("Upsert: expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.Get(ctx, ""); err != document.ErrInvalidID {
		t.Fatalf("Get: expected ErrInvalidID, got %v", err)
	}
}

func TestServiceVersionChain(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	d, err := svc.FetchOrCreate(ctx, "d1")
	if err != nil {
		t.Fatalf("fetchOrCreate failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		d, err = svc.ConditionalUpdate(ctx, "d1", map[string]interface{}{"n": i}, d.Version, "e1")
		if err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}
	if d.Version != 3 {
		t.Fatalf("expected version 3 after three conditional writes, got %d", d.Version)
	}

	// a writer holding an old version must conflict
	if _, err := svc.ConditionalUpdate(ctx, "d1", nil, 1, "e2"); err != document.ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
