package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coscribe/coscribe/server/internal/document"
	"github.com/coscribe/coscribe/server/pkg/logger"
)

// MongoRepo implements the document repository on a MongoDB collection.
// Documents are keyed by "_id" (the client-generated document id). The
// version check rides on FindOneAndUpdate filters, so the compare-and-swap
// is atomic on the server even with many application instances.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// FetchOrCreate upserts an empty record for id and returns the stored state.
// $setOnInsert makes concurrent first accesses race-safe: the first writer
// creates, later ones observe the created record.
func (m *MongoRepo) FetchOrCreate(ctx context.Context, id string) (*document.Document, error) {
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"content":     bson.M{},
		"version":     int64(0),
		"lastEditors": []string{},
		"createdAt":   now,
		"updatedAt":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var d document.Document
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ConditionalUpdate performs the optimistic-concurrency write: the filter
// matches both id and expectedVersion, so a stale writer matches nothing and
// the stored record stays untouched.
func (m *MongoRepo) ConditionalUpdate(ctx context.Context, id string, content interface{}, expectedVersion int64, editorID string) (*document.Document, error) {
	update := bson.M{
		"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": int64(1)},
	}
	if editorID != "" {
		update["$addToSet"] = bson.M{"lastEditors": editorID}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d document.Document
	err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "version": expectedVersion}, update, opts).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish a stale version from a missing record.
			if _, gerr := m.Get(ctx, id); gerr == nil {
				return nil, document.ErrConflict
			}
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	m.capEditors(ctx, id, &d)
	return &d, nil
}

// Upsert is the unconditional save path: create-or-overwrite with no version
// check and no version bump. Last writer wins; concurrent Upserts can
// silently lose updates.
func (m *MongoRepo) Upsert(ctx context.Context, id string, content interface{}, editorID string) (*document.Document, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"content": content, "updatedAt": now},
		"$setOnInsert": bson.M{"version": int64(0), "createdAt": now},
	}
	if editorID != "" {
		update["$addToSet"] = bson.M{"lastEditors": editorID}
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var d document.Document
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&d); err != nil {
		return nil, err
	}
	m.capEditors(ctx, id, &d)
	return &d, nil
}

// Get is a read-only fetch.
func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// capEditors trims lastEditors to the newest MaxLastEditors entries.
// $addToSet cannot cap the array in the same update, so oversized lists are
// cut back with a $push/$slice follow-up. The returned document is always
// trimmed locally; a trim failure must not fail a write that already
// succeeded, so it is only logged and retried by the next write.
func (m *MongoRepo) capEditors(ctx context.Context, id string, d *document.Document) {
	if len(d.LastEditors) <= document.MaxLastEditors {
		return
	}
	_, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"lastEditors": bson.M{"$each": []string{}, "$slice": -document.MaxLastEditors}},
	})
	if err != nil {
		logger.Warnf("documents: lastEditors trim failed for %s: %v", id, err)
	}
	d.LastEditors = d.LastEditors[len(d.LastEditors)-document.MaxLastEditors:]
}
