package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// remoteRecord is the stored shape: one versioned document under a fixed _id.
type remoteRecord struct {
	ID        string           `bson:"_id"`
	Version   int64            `bson:"version"`
	Data      content.Document `bson:"data"`
	UpdatedAt time.Time        `bson:"updatedAt"`
}

// storedRecord is remoteRecord as read back; data is checked before decoding.
type storedRecord struct {
	Version int64    `bson:"version"`
	Data    bson.Raw `bson:"data"`
}

var bsonCollections = []string{"campaigns", "news", "staff", "services"}

// decodeRecord turns a stored record into a snapshot. A record missing any
// top-level field, or holding one of the wrong type, is rejected whole.
func decodeRecord(rec *storedRecord) (*Snapshot, error) {
	if len(rec.Data) == 0 {
		return nil, &content.ValidationError{Reason: "remote record has no data"}
	}
	fields := map[string]string{}
	for _, k := range bsonCollections {
		fields = checkBSONField(fields, rec.Data, k, bson.TypeArray, "must be an array")
	}
	fields = checkBSONField(fields, rec.Data, "settings", bson.TypeEmbeddedDocument, "must be an object")
	if len(fields) > 0 {
		return nil, &content.ValidationError{Reason: "malformed remote document", Fields: fields}
	}
	var doc content.Document
	if err := bson.Unmarshal(rec.Data, &doc); err != nil {
		return nil, &content.ValidationError{Reason: fmt.Sprintf("decode remote document: %v", err)}
	}
	doc.Normalize()
	return &Snapshot{Doc: &doc, Version: rec.Version}, nil
}

func checkBSONField(fields map[string]string, raw bson.Raw, key string, want bsontype.Type, msg string) map[string]string {
	v, err := raw.LookupErr(key)
	switch {
	case err != nil || v.Type == bson.TypeNull:
		fields[key] = "is required"
	case v.Type != want:
		fields[key] = msg
	}
	return fields
}

// MongoRemote implements Remote on a MongoDB collection.
// Change streams need a replica set; Watch fails on a standalone server and
// the gateway keeps working without live updates.
type MongoRemote struct {
	col   *mongo.Collection
	audit *mongo.Collection
	key   string
}

func NewMongoRemote(col, audit *mongo.Collection, key string) *MongoRemote {
	if key == "" {
		key = "salonData"
	}
	idx := mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}}
	if _, err := audit.Indexes().CreateOne(context.Background(), idx); err != nil {
		logger.Warnf("mongo remote: audit index: %v", err)
	}
	return &MongoRemote{col: col, audit: audit, key: key}
}

func (m *MongoRemote) Ping(ctx context.Context) error {
	if err := m.col.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %v: %w", err, content.ErrRemoteUnavailable)
	}
	return nil
}

func (m *MongoRemote) Get(ctx context.Context) (*Snapshot, error) {
	var rec storedRecord
	err := m.col.FindOne(ctx, bson.M{"_id": m.key}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoRemoteDocument
		}
		return nil, fmt.Errorf("mongo get: %v: %w", err, content.ErrRemoteUnavailable)
	}
	return decodeRecord(&rec)
}

func (m *MongoRemote) StoredVersion(ctx context.Context) (int64, error) {
	var rec struct {
		Version int64 `bson:"version"`
	}
	opts := options.FindOne().SetProjection(bson.M{"version": 1})
	err := m.col.FindOne(ctx, bson.M{"_id": m.key}, opts).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNoRemoteDocument
		}
		return 0, fmt.Errorf("mongo version: %v: %w", err, content.ErrRemoteUnavailable)
	}
	return rec.Version, nil
}

func (m *MongoRemote) CompareAndSet(ctx context.Context, doc *content.Document, expected int64) (int64, error) {
	now := time.Now().UTC()
	if expected == 0 {
		_, err := m.col.InsertOne(ctx, remoteRecord{ID: m.key, Version: 1, Data: *doc, UpdatedAt: now})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return 0, fmt.Errorf("document already exists: %w", content.ErrConflict)
			}
			return 0, fmt.Errorf("mongo insert: %v: %w", err, content.ErrRemoteUnavailable)
		}
		return 1, nil
	}
	res, err := m.col.UpdateOne(ctx,
		bson.M{"_id": m.key, "version": expected},
		bson.M{"$set": bson.M{"data": doc, "updatedAt": now}, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return 0, fmt.Errorf("mongo update: %v: %w", err, content.ErrRemoteUnavailable)
	}
	if res.MatchedCount == 0 {
		return 0, fmt.Errorf("version %d is stale: %w", expected, content.ErrConflict)
	}
	return expected + 1, nil
}

func (m *MongoRemote) Watch(ctx context.Context) (<-chan Snapshot, error) {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: m.key}}}}}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := m.col.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo watch: %v: %w", err, content.ErrRemoteUnavailable)
	}
	out := make(chan Snapshot, 4)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			var ev struct {
				FullDocument *storedRecord `bson:"fullDocument"`
			}
			if err := cs.Decode(&ev); err != nil {
				logger.Warnf("mongo remote: decode change: %v", err)
				continue
			}
			if ev.FullDocument == nil {
				continue
			}
			snap, err := decodeRecord(ev.FullDocument)
			if err != nil {
				logger.Warnf("mongo remote: ignoring change: %v", err)
				continue
			}
			select {
			case out <- *snap:
			case <-ctx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			logger.Warnf("mongo remote: change stream ended: %v", err)
		}
	}()
	return out, nil
}

func (m *MongoRemote) AppendAudit(ctx context.Context, rec AuditRecord) error {
	if _, err := m.audit.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("mongo audit: %w", err)
	}
	return nil
}
