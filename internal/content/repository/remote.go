package repository

import (
	"context"
	"errors"

	"github.com/salonmirai/sitesync/internal/content"
)

var (
	// ErrNoRemoteDocument means the remote store is reachable but holds no document yet.
	ErrNoRemoteDocument = errors.New("remote document not found")
)

// Snapshot is a remote document together with its version.
type Snapshot struct {
	Doc     *content.Document
	Version int64
}

// AuditRecord is one entry of the append-only admin log.
type AuditRecord struct {
	ID        string `json:"id" bson:"_id"`
	Action    string `json:"action" bson:"action"`
	User      string `json:"user" bson:"user"`
	Timestamp string `json:"timestamp" bson:"timestamp"`
	Success   bool   `json:"success" bson:"success"`
	Version   int64  `json:"version,omitempty" bson:"version,omitempty"`
}

// Remote is the shared tier that every admin and visitor converges on.
type Remote interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context) (*Snapshot, error)
	// StoredVersion reports the version of the stored document without
	// decoding it, or ErrNoRemoteDocument.
	StoredVersion(ctx context.Context) (int64, error)
	// CompareAndSet writes doc only when the stored version equals expected
	// (0 means "no document yet") and returns the new version. A mismatch is
	// content.ErrConflict.
	CompareAndSet(ctx context.Context, doc *content.Document, expected int64) (int64, error)
	// Watch streams snapshots written by anyone until ctx ends or the stream fails;
	// the channel is closed in both cases.
	Watch(ctx context.Context) (<-chan Snapshot, error)
	AppendAudit(ctx context.Context, rec AuditRecord) error
}
