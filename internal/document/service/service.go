package service

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coscribe/coscribe/server/internal/document"
	"github.com/coscribe/coscribe/server/internal/document/repository"
)

// Repository is the persistence contract the service layers over. Both the
// in-memory and the Mongo implementations satisfy it.
type Repository interface {
	FetchOrCreate(ctx context.Context, id string) (*document.Document, error)
	ConditionalUpdate(ctx context.Context, id string, content interface{}, expectedVersion int64, editorID string) (*document.Document, error)
	Upsert(ctx context.Context, id string, content interface{}, editorID string) (*document.Document, error)
	Get(ctx context.Context, id string) (*document.Document, error)
}

// Service is the document store surface used by the gateway, the autosaver
// and the REST handlers.
type Service interface {
	FetchOrCreate(ctx context.Context, id string) (*document.Document, error)
	// ConditionalUpdate fails with document.ErrConflict when expectedVersion
	// is stale; the stored record is left untouched.
	ConditionalUpdate(ctx context.Context, id string, content interface{}, expectedVersion int64, editorID string) (*document.Document, error)
	// Upsert is the unconditional save path: last writer wins, no version
	// bump. Kept for the fire-and-forget save notification.
	Upsert(ctx context.Context, id string, content interface{}, editorID string) (*document.Document, error)
	Get(ctx context.Context, id string) (*document.Document, error)
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return &docService{repo: repository.NewMemoryRepo()}
}

// NewMongoService returns a Service backed by a MongoDB collection. The
// caller owns the client lifecycle.
func NewMongoService(col *mongo.Collection) Service {
	return &docService{repo: repository.NewMongoRepo(col)}
}

// NewService wraps an arbitrary Repository (used by tests with fakes).
func NewService(repo Repository) Service {
	return &docService{repo: repo}
}

type docService struct {
	repo Repository
}

func (s *docService) FetchOrCreate(ctx context.Context, id string) (*document.Document, error) {
	if id == "" {
		return nil, document.ErrInvalidID
	}
	return s.repo.FetchOrCreate(ctx, id)
}

func (s *docService) ConditionalUpdate(ctx context.Context, id string, content interface{}, expectedVersion int64, editorID string) (*document.Document, error) {
	if id == "" {
		return nil, document.ErrInvalidID
	}
	return s.repo.ConditionalUpdate(ctx, id, content, expectedVersion, editorID)
}

func (s *docService) Upsert(ctx context.Context, id string, content interface{}, editorID string) (*document.Document, error) {
	if id == "" {
		return nil, document.ErrInvalidID
	}
	return s.repo.Upsert(ctx, id, content, editorID)
}

func (s *docService) Get(ctx context.Context, id string) (*document.Document, error) {
	if id == "" {
		return nil, document.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}
