// Package store persists the content document across tiers: the remote
// store (through the gateway), the local cache and the bundled defaults.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/repository"
	"github.com/salonmirai/sitesync/internal/gateway"
	"github.com/salonmirai/sitesync/pkg/logger"
	"github.com/salonmirai/sitesync/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// DocumentKey is the local cache key holding the whole document.
const DocumentKey = "salon_data_backup"

// Source names the tier a document came from or a save ended up in.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceDefaults Source = "defaults"
)

// SaveResult reports where a save landed.
type SaveResult struct {
	Success  bool   `json:"success"`
	Source   Source `json:"source"`
	Conflict bool   `json:"conflict,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// Pending is a save whose local write is done and whose remote push may still be running.
type Pending struct {
	local  SaveResult
	done   chan struct{}
	result SaveResult
}

func newPending(local SaveResult) *Pending {
	return &Pending{local: local, done: make(chan struct{})}
}

func (p *Pending) resolve(r SaveResult) {
	p.result = r
	close(p.done)
}

// Local is the result as of the local write.
func (p *Pending) Local() SaveResult { return p.local }

// Wait blocks until the remote push settles or ctx ends; in the latter case
// the local result is returned.
func (p *Pending) Wait(ctx context.Context) SaveResult {
	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return p.local
	}
}

// Listener is called with a private copy of the document after every save
// (origin local) and every applied remote change (origin remote).
type Listener func(doc *content.Document, origin Source)

type Options struct {
	Key string
	Now func() time.Time
}

type Store struct {
	cache repository.Cache
	gw    *gateway.Gateway
	key   string
	now   func() time.Time
	log   *logrus.Entry

	mu        sync.Mutex
	lastStamp time.Time
	listeners map[int]Listener
	nextID    int

	// pushes are ordered by save sequence; an older push never overwrites a newer one
	pushMu     sync.Mutex
	seq        uint64
	lastPushed uint64
}

// New wires the store to the local cache and the gateway (which may have no remote).
func New(cache repository.Cache, gw *gateway.Gateway, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DocumentKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if gw == nil {
		gw = gateway.New(nil, gateway.Options{})
	}
	s := &Store{
		cache:     cache,
		gw:        gw,
		key:       opts.Key,
		now:       opts.Now,
		log:       logger.WithFields(map[string]interface{}{"component": "store"}),
		listeners: map[int]Listener{},
	}
	gw.OnRemoteChange(s.applyRemote)
	gw.SetLocalSource(s.ReadLocal)
	return s
}

// Gateway exposes the sync gateway for status reporting.
func (s *Store) Gateway() *gateway.Gateway { return s.gw }

// Defaults returns a fresh copy of the bundled starter content.
func (s *Store) Defaults() *content.Document { return content.Defaults() }

// Load returns the best available document: remote when online, else the
// local cache, else the bundled defaults. It never fails.
func (s *Store) Load(ctx context.Context) (*content.Document, Source) {
	if s.gw.Online() {
		doc, err := s.gw.Pull(ctx)
		switch {
		case err == nil:
			if werr := s.writeLocal(ctx, doc); werr != nil {
				s.log.WithError(werr).Warn("write-through of remote document failed")
			}
			return doc, SourceRemote
		case errors.Is(err, repository.ErrNoRemoteDocument):
			s.log.Info("remote holds no document yet")
		default:
			s.log.WithError(err).Warn("remote load failed; trying local cache")
		}
	}

	doc, err := s.ReadLocal(ctx)
	if err == nil {
		return doc, SourceLocal
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.log.WithError(err).Warn("local cache unusable; using bundled defaults")
	}
	return content.Defaults(), SourceDefaults
}

// ReadLocal decodes the local cache copy.
func (s *Store) ReadLocal(ctx context.Context) (*content.Document, error) {
	raw, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return content.Decode(raw)
}

// Save stamps doc, writes it to the local cache and pushes it to the remote
// in the background. Only a local write failure is an error.
func (s *Store) Save(ctx context.Context, doc *content.Document, actor string) (*Pending, error) {
	if doc == nil {
		return nil, &content.ValidationError{Reason: "document is nil"}
	}
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	s.stamp(doc, actor)
	snapshot := doc.Clone()

	if err := s.writeLocal(ctx, snapshot); err != nil {
		return nil, err
	}
	s.notify(snapshot, SourceLocal)

	p := newPending(SaveResult{Success: true, Source: SourceLocal})
	if !s.gw.Online() {
		res := p.local
		if s.gw.Configured() {
			res.Warning = "remote unavailable; saved locally"
		}
		metrics.ContentSaves.WithLabelValues(string(SourceLocal)).Inc()
		p.resolve(res)
		return p, nil
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	go s.push(context.WithoutCancel(ctx), snapshot, actor, seq, p)
	return p, nil
}

func (s *Store) push(ctx context.Context, doc *content.Document, actor string, seq uint64, p *Pending) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	if seq < s.lastPushed {
		// a newer save already carried this state to the remote
		p.resolve(SaveResult{Success: true, Source: SourceRemote})
		return
	}

	res := SaveResult{Success: true, Source: SourceRemote}
	err := s.gw.Push(ctx, doc)
	switch {
	case err == nil:
		s.lastPushed = seq
	case errors.Is(err, content.ErrConflict):
		res = SaveResult{Success: true, Source: SourceLocal, Conflict: true, Warning: "remote changed by another editor; remote copy kept"}
	default:
		res = SaveResult{Success: true, Source: SourceLocal, Warning: "remote write failed; saved locally"}
		s.log.WithError(err).Warn("remote push failed")
	}
	metrics.ContentSaves.WithLabelValues(string(res.Source)).Inc()

	if s.gw.Online() {
		rec := repository.AuditRecord{
			ID:        uuid.NewString(),
			Action:    "data_update",
			User:      actorOrDefault(actor),
			Timestamp: content.Timestamp(s.now()),
			Success:   err == nil,
			Version:   s.gw.Status().Version,
		}
		if aerr := s.gw.AppendAudit(ctx, rec); aerr != nil {
			s.log.WithError(aerr).Debug("audit append failed")
		}
	}
	p.resolve(res)
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "admin"
	}
	return actor
}

// Reset replaces the document with the bundled defaults and saves it.
func (s *Store) Reset(ctx context.Context, actor string) (*content.Document, *Pending, error) {
	doc := content.Defaults()
	p, err := s.Save(ctx, doc, actor)
	if err != nil {
		return nil, nil, err
	}
	return doc, p, nil
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(doc *content.Document, origin Source) {
	s.mu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()
	for _, l := range ls {
		l(doc.Clone(), origin)
	}
}

// applyRemote replaces the local replica with a remote document.
func (s *Store) applyRemote(ctx context.Context, doc *content.Document) {
	doc.Normalize()
	if err := s.writeLocal(ctx, doc); err != nil {
		s.log.WithError(err).Error("applying remote change to local cache failed")
	}
	s.log.Info("remote change applied")
	s.notify(doc, SourceRemote)
}

func (s *Store) writeLocal(ctx context.Context, doc *content.Document) error {
	raw, err := content.Encode(doc)
	if err != nil {
		return &content.StorageError{Op: "encode", Err: err}
	}
	if err := s.cache.Set(ctx, s.key, raw, 0); err != nil {
		return &content.StorageError{Op: "write local cache", Err: err}
	}
	return nil
}

// stamp sets lastUpdated so it strictly increases across saves, even when
// the clock has not moved or the document carries a later timestamp.
func (s *Store) stamp(doc *content.Document, actor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC().Truncate(time.Millisecond)
	floor := s.lastStamp
	if prev, err := content.ParseTimestamp(doc.Settings.LastUpdated); err == nil && prev.After(floor) {
		floor = prev
	}
	if !now.After(floor) {
		now = floor.Add(time.Millisecond)
	}
	s.lastStamp = now
	doc.Settings.LastUpdated = content.Timestamp(now)
	if actor != "" {
		doc.Settings.LastUpdatedBy = actor
	}
	doc.Settings.SchemaVersion = doc.SchemaVersion
}
