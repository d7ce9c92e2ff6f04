// Package gateway keeps the local replica and the remote store in step.
//
// The gateway tracks connectivity (probe loop plus explicit signals), pushes
// saves with a version compare-and-set, pulls the remote copy on conflict and
// applies remote change notifications through the registered handler.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/repository"
	"github.com/salonmirai/sitesync/pkg/logger"
	"github.com/salonmirai/sitesync/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// ChangeHandler receives remote documents that should replace the local replica.
type ChangeHandler func(ctx context.Context, doc *content.Document)

// LocalSource returns the current local replica for the reconnect push.
type LocalSource func(ctx context.Context) (*content.Document, error)

type Options struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// Status is the connection summary shown on the admin dashboard.
type Status struct {
	Online           bool   `json:"online"`
	RemoteConfigured bool   `json:"remoteConfigured"`
	Watching         bool   `json:"watching"`
	Version          int64  `json:"version"`
	LastSync         string `json:"lastSync,omitempty"`
	LastError        string `json:"lastError,omitempty"`
}

type Gateway struct {
	remote repository.Remote
	opts   Options
	log    *logrus.Entry

	// pushMu orders remote writes and remote applies so a change-stream echo
	// of our own write is seen after the version it produced.
	pushMu sync.Mutex

	mu       sync.Mutex
	online   bool
	watching bool
	version  int64
	lastSync time.Time
	lastErr  string
	onChange ChangeHandler
	local    LocalSource
}

// New creates a gateway. remote may be nil, in which case every remote
// operation reports content.ErrRemoteUnavailable.
func New(remote repository.Remote, opts Options) *Gateway {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 10 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	return &Gateway{
		remote: remote,
		opts:   opts,
		log:    logger.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

func (g *Gateway) OnRemoteChange(fn ChangeHandler) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

func (g *Gateway) SetLocalSource(fn LocalSource) {
	g.mu.Lock()
	g.local = fn
	g.mu.Unlock()
}

func (g *Gateway) Configured() bool { return g.remote != nil }

func (g *Gateway) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := Status{
		Online:           g.online,
		RemoteConfigured: g.remote != nil,
		Watching:         g.watching,
		Version:          g.version,
		LastError:        g.lastErr,
	}
	if !g.lastSync.IsZero() {
		st.LastSync = content.Timestamp(g.lastSync)
	}
	return st
}

// Connect probes the remote once at startup. It marks the gateway online
// without the reconnect push, so the remote copy wins at startup.
func (g *Gateway) Connect(ctx context.Context) bool {
	if g.remote == nil {
		return false
	}
	err := g.ping(ctx)
	g.mu.Lock()
	g.online = err == nil
	g.recordErrLocked(err)
	g.mu.Unlock()
	g.publishState()
	return err == nil
}

// SetOnline applies a connectivity signal. The offline→online transition
// pushes the current local replica once.
func (g *Gateway) SetOnline(ctx context.Context, online bool) {
	if g.remote == nil {
		return
	}
	g.mu.Lock()
	prev := g.online
	g.online = online
	g.mu.Unlock()
	g.publishState()

	switch {
	case !prev && online:
		g.log.Info("remote reachable again; pushing local replica")
		g.reconnect(ctx)
	case prev && !online:
		g.log.Warn("remote unreachable; saves stay local")
	}
}

// reconnect pushes the local replica after an outage. When this process has
// never observed a remote version (the remote was down at startup), the
// replica is based on nothing the remote knows about, so the push is made
// against the remote's current version and the local edits win.
func (g *Gateway) reconnect(ctx context.Context) {
	g.mu.Lock()
	local := g.local
	g.mu.Unlock()
	if local == nil {
		return
	}
	doc, err := local(ctx)
	if err != nil {
		g.log.WithError(err).Warn("reconnect: no local replica to push")
		return
	}
	if err := g.available(); err != nil {
		return
	}

	g.pushMu.Lock()
	defer g.pushMu.Unlock()
	if g.currentVersion() == 0 {
		v, err := g.remote.StoredVersion(ctx)
		switch {
		case err == nil:
			g.mu.Lock()
			g.version = v
			g.mu.Unlock()
		case errors.Is(err, repository.ErrNoRemoteDocument):
		default:
			g.markOffline(err)
			g.log.WithError(err).Warn("reconnect: reading remote version failed")
			return
		}
	}
	if err := g.pushLocked(ctx, doc); err != nil {
		g.log.WithError(err).Warn("reconnect push failed")
	}
}

func (g *Gateway) currentVersion() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}

func isInvalid(err error) bool {
	var ve *content.ValidationError
	return errors.As(err, &ve)
}

// Pull reads the remote document and remembers its version.
func (g *Gateway) Pull(ctx context.Context) (*content.Document, error) {
	if err := g.available(); err != nil {
		return nil, err
	}
	snap, err := g.remote.Get(ctx)
	if err != nil {
		// a missing or unreadable document is not a connectivity problem
		if !errors.Is(err, repository.ErrNoRemoteDocument) && !isInvalid(err) {
			g.markOffline(err)
		}
		return nil, err
	}
	g.mu.Lock()
	g.version = snap.Version
	g.lastSync = time.Now()
	g.mu.Unlock()
	return snap.Doc, nil
}

// Push writes doc with compare-and-set against the last observed version.
// On conflict the remote copy is pulled and handed to the change handler,
// and content.ErrConflict is returned.
func (g *Gateway) Push(ctx context.Context, doc *content.Document) error {
	if err := g.available(); err != nil {
		return err
	}
	g.pushMu.Lock()
	defer g.pushMu.Unlock()
	return g.pushLocked(ctx, doc)
}

// pushLocked is Push with pushMu held.
func (g *Gateway) pushLocked(ctx context.Context, doc *content.Document) error {
	expected := g.currentVersion()

	v, err := g.remote.CompareAndSet(ctx, doc, expected)
	switch {
	case err == nil:
		g.mu.Lock()
		if v > g.version {
			g.version = v
		}
		g.lastSync = time.Now()
		g.lastErr = ""
		g.mu.Unlock()
		return nil
	case errors.Is(err, content.ErrConflict):
		metrics.SyncConflicts.Inc()
		g.log.WithError(err).Warn("remote changed since last sync; adopting remote copy")
		if aerr := g.adoptRemoteLocked(ctx); aerr != nil {
			g.log.WithError(aerr).Warn("pull after conflict failed")
		}
		return err
	default:
		metrics.RemotePushFailures.Inc()
		g.markOffline(err)
		return err
	}
}

// adoptRemoteLocked pulls the remote copy; the caller holds pushMu.
func (g *Gateway) adoptRemoteLocked(ctx context.Context) error {
	snap, err := g.remote.Get(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.version = snap.Version
	g.lastSync = time.Now()
	handler := g.onChange
	g.mu.Unlock()
	if handler != nil {
		metrics.RemoteChangesApplied.Inc()
		handler(ctx, snap.Doc)
	}
	return nil
}

// AppendAudit writes an audit record. Best effort: callers log failures.
func (g *Gateway) AppendAudit(ctx context.Context, rec repository.AuditRecord) error {
	if err := g.available(); err != nil {
		return err
	}
	return g.remote.AppendAudit(ctx, rec)
}

// Run probes connectivity and keeps a change-stream subscription open while
// online. It returns immediately when no remote is configured.
func (g *Gateway) Run(ctx context.Context) error {
	if g.remote == nil {
		return nil
	}
	ticker := time.NewTicker(g.opts.ProbeInterval)
	defer ticker.Stop()
	g.ensureWatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.probe(ctx)
			g.ensureWatch(ctx)
		}
	}
}

func (g *Gateway) probe(ctx context.Context) {
	err := g.ping(ctx)
	g.mu.Lock()
	g.recordErrLocked(err)
	g.mu.Unlock()
	g.SetOnline(ctx, err == nil)
}

func (g *Gateway) ping(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, g.opts.ProbeTimeout)
	defer cancel()
	return g.remote.Ping(pctx)
}

func (g *Gateway) ensureWatch(ctx context.Context) {
	g.mu.Lock()
	if !g.online || g.watching {
		g.mu.Unlock()
		return
	}
	g.watching = true
	g.mu.Unlock()

	ch, err := g.remote.Watch(ctx)
	if err != nil {
		g.log.WithError(err).Debug("change stream unavailable")
		g.mu.Lock()
		g.watching = false
		g.mu.Unlock()
		return
	}
	g.publishState()
	go g.consume(ctx, ch)
}

func (g *Gateway) consume(ctx context.Context, ch <-chan repository.Snapshot) {
	for snap := range ch {
		g.apply(ctx, snap)
	}
	g.mu.Lock()
	g.watching = false
	g.mu.Unlock()
	if ctx.Err() == nil {
		g.log.Warn("change stream closed; will resubscribe when online")
	}
}

// apply hands a remote snapshot newer than anything we have seen to the handler.
func (g *Gateway) apply(ctx context.Context, snap repository.Snapshot) {
	g.pushMu.Lock()
	defer g.pushMu.Unlock()

	g.mu.Lock()
	if snap.Version <= g.version {
		g.mu.Unlock()
		return
	}
	g.version = snap.Version
	g.lastSync = time.Now()
	handler := g.onChange
	g.mu.Unlock()

	if handler != nil {
		metrics.RemoteChangesApplied.Inc()
		handler(ctx, snap.Doc)
	}
}

func (g *Gateway) available() error {
	if g.remote == nil {
		return fmt.Errorf("no remote configured: %w", content.ErrRemoteUnavailable)
	}
	if !g.Online() {
		return fmt.Errorf("offline: %w", content.ErrRemoteUnavailable)
	}
	return nil
}

func (g *Gateway) markOffline(err error) {
	g.mu.Lock()
	was := g.online
	g.online = false
	g.recordErrLocked(err)
	g.mu.Unlock()
	g.publishState()
	if was {
		g.log.WithError(err).Warn("remote operation failed; switching to offline")
	}
}

func (g *Gateway) recordErrLocked(err error) {
	if err == nil {
		g.lastErr = ""
		return
	}
	g.lastErr = err.Error()
}

func (g *Gateway) publishState() {
	if g.Online() {
		metrics.RemoteOnline.Set(1)
		return
	}
	metrics.RemoteOnline.Set(0)
}
