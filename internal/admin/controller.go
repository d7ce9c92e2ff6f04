// Package admin owns the editable content document for the admin surface.
// Every edit goes through the Controller: a copy is changed by the engine,
// saved through the store and then becomes current.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/engine"
	"github.com/salonmirai/sitesync/internal/content/store"
	"github.com/salonmirai/sitesync/internal/gateway"
	"github.com/salonmirai/sitesync/pkg/logger"
)

// Archive keeps exported snapshots outside the site (an object bucket).
type Archive interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

type Options struct {
	// Archive is optional.
	Archive Archive
	// RemoteWait bounds how long an edit waits for the remote push.
	RemoteWait time.Duration
	Now        func() time.Time
}

// Stats are the dashboard counters.
type Stats struct {
	Campaigns       int    `json:"campaigns"`
	ActiveCampaigns int    `json:"activeCampaigns"`
	News            int    `json:"news"`
	Staff           int    `json:"staff"`
	Services        int    `json:"services"`
	LastUpdated     string `json:"lastUpdated,omitempty"`
	LastUpdatedBy   string `json:"lastUpdatedBy,omitempty"`
}

// Export is a downloadable snapshot.
type Export struct {
	Filename   string
	Data       []byte
	ArchiveKey string
	ArchiveURL string
}

type Controller struct {
	store      *store.Store
	engine     *engine.Engine
	archive    Archive
	remoteWait time.Duration
	now        func() time.Time

	mu     sync.Mutex
	doc    *content.Document
	source store.Source
	stop   func()
}

func New(st *store.Store, eng *engine.Engine, opts Options) *Controller {
	if eng == nil {
		eng = engine.New()
	}
	if opts.RemoteWait <= 0 {
		opts.RemoteWait = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:      st,
		engine:     eng,
		archive:    opts.Archive,
		remoteWait: opts.RemoteWait,
		now:        opts.Now,
		doc:        content.Defaults(),
		source:     store.SourceDefaults,
	}
}

// Start loads the document and follows remote changes until Close.
func (c *Controller) Start(ctx context.Context) store.Source {
	doc, src := c.store.Load(ctx)
	c.mu.Lock()
	c.doc = doc
	c.source = src
	c.mu.Unlock()
	if c.stop == nil {
		c.stop = c.store.Subscribe(c.onStoreChange)
	}
	logger.Infof("admin: content loaded from %s", src)
	return src
}

func (c *Controller) Close() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

// onStoreChange adopts documents that arrive from the remote. Local saves
// are made by this controller and already current; they are ignored before
// taking the lock because Save notifies while an edit holds it.
func (c *Controller) onStoreChange(doc *content.Document, origin store.Source) {
	if origin != store.SourceRemote {
		return
	}
	c.mu.Lock()
	c.doc = doc
	c.source = store.SourceRemote
	c.mu.Unlock()
}

// Document returns a copy of the current document.
func (c *Controller) Document() *content.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

func (c *Controller) Source() store.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Campaigns:     len(c.doc.Campaigns),
		News:          len(c.doc.News),
		Staff:         len(c.doc.Staff),
		Services:      len(c.doc.Services),
		LastUpdated:   c.doc.Settings.LastUpdated,
		LastUpdatedBy: c.doc.Settings.LastUpdatedBy,
	}
	for _, cp := range c.doc.Campaigns {
		if cp.Active {
			s.ActiveCampaigns++
		}
	}
	return s
}

func (c *Controller) Status() gateway.Status {
	return c.store.Gateway().Status()
}

// mutate applies fn to a copy of the document and saves it. The current
// document only changes when fn and the local save both succeed. The lock is
// released before waiting on the remote push, which may itself deliver a
// remote document back to this controller.
func (c *Controller) mutate(ctx context.Context, actor string, fn func(doc *content.Document) error) (store.SaveResult, error) {
	c.mu.Lock()
	next := c.doc.Clone()
	if err := fn(next); err != nil {
		c.mu.Unlock()
		return store.SaveResult{}, err
	}
	pending, err := c.store.Save(ctx, next, actor)
	if err != nil {
		c.mu.Unlock()
		return store.SaveResult{}, err
	}
	c.doc = next
	c.source = store.SourceLocal
	c.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, c.remoteWait)
	defer cancel()
	return pending.Wait(wctx), nil
}

func (c *Controller) Create(ctx context.Context, actor string, kind content.Kind, f engine.Fields) (content.Entity, store.SaveResult, error) {
	var out content.Entity
	res, err := c.mutate(ctx, actor, func(doc *content.Document) error {
		e, err := c.engine.Create(doc, kind, f)
		out = e
		return err
	})
	return out, res, err
}

func (c *Controller) Update(ctx context.Context, actor string, kind content.Kind, id int, f engine.Fields) (content.Entity, store.SaveResult, error) {
	var out content.Entity
	res, err := c.mutate(ctx, actor, func(doc *content.Document) error {
		e, err := c.engine.Update(doc, kind, id, f)
		out = e
		return err
	})
	return out, res, err
}

func (c *Controller) Delete(ctx context.Context, actor string, kind content.Kind, id int) (store.SaveResult, error) {
	return c.mutate(ctx, actor, func(doc *content.Document) error {
		return c.engine.Delete(doc, kind, id)
	})
}

func (c *Controller) ToggleActive(ctx context.Context, actor string, id int) (content.Campaign, store.SaveResult, error) {
	var out content.Campaign
	res, err := c.mutate(ctx, actor, func(doc *content.Document) error {
		cp, err := c.engine.ToggleActive(doc, id)
		out = cp
		return err
	})
	return out, res, err
}

// SetAllActive returns the number of campaigns changed.
func (c *Controller) SetAllActive(ctx context.Context, actor string, active bool) (int, store.SaveResult, error) {
	var n int
	res, err := c.mutate(ctx, actor, func(doc *content.Document) error {
		n = c.engine.SetAllActive(doc, active)
		return nil
	})
	return n, res, err
}

func (c *Controller) UpdateSettings(ctx context.Context, actor string, f engine.Fields) (content.Settings, store.SaveResult, error) {
	var out content.Settings
	res, err := c.mutate(ctx, actor, func(doc *content.Document) error {
		s, err := c.engine.UpdateSettings(doc, f)
		out = s
		return err
	})
	if err == nil {
		// stamped by the save
		out = c.Document().Settings
	}
	return out, res, err
}

func (c *Controller) AddReview(ctx context.Context, actor string, staffID int, text string) (content.StaffMember, store.SaveResult, error) {
	var out content.StaffMember
	res, err := c.mutate(ctx, actor, func(doc *content.Document) error {
		s, err := c.engine.AddReview(doc, staffID, text)
		out = s
		return err
	})
	return out, res, err
}

// Import replaces the whole document with raw. Invalid input leaves the
// current document untouched.
func (c *Controller) Import(ctx context.Context, actor string, raw []byte) (store.SaveResult, error) {
	doc, err := content.Decode(raw)
	if err != nil {
		return store.SaveResult{}, err
	}
	if err := doc.Validate(); err != nil {
		return store.SaveResult{}, err
	}
	return c.mutate(ctx, actor, func(cur *content.Document) error {
		*cur = *doc
		return nil
	})
}

// ImportFromArchive restores a snapshot previously written by Export or Reset.
func (c *Controller) ImportFromArchive(ctx context.Context, actor, key string) (store.SaveResult, error) {
	if c.archive == nil {
		return store.SaveResult{}, content.ErrUnsupported
	}
	raw, err := c.archive.Get(ctx, key)
	if err != nil {
		return store.SaveResult{}, &content.StorageError{Op: "read archive", Err: err}
	}
	return c.Import(ctx, actor, raw)
}

// Export encodes the current document for download and, when an archive is
// configured, uploads a copy. An archive failure does not fail the export.
func (c *Controller) Export(ctx context.Context) (*Export, error) {
	data, err := content.EncodeIndent(c.Document())
	if err != nil {
		return nil, &content.StorageError{Op: "encode", Err: err}
	}
	now := c.now()
	out := &Export{
		Filename: fmt.Sprintf("salon-data-backup-%s.json", now.Format("2006-01-02")),
		Data:     data,
	}
	if c.archive != nil {
		key := "exports/" + out.Filename
		url, err := c.archive.Put(ctx, key, data)
		if err != nil {
			logger.Warnf("admin: archive upload of %s failed: %v", key, err)
		} else {
			out.ArchiveKey = key
			out.ArchiveURL = url
		}
	}
	return out, nil
}

// Reset replaces the document with the bundled defaults. The previous
// document is archived first when an archive is configured.
func (c *Controller) Reset(ctx context.Context, actor string) (store.SaveResult, error) {
	if c.archive != nil {
		if data, err := content.EncodeIndent(c.Document()); err == nil {
			key := fmt.Sprintf("resets/salon-data-%s.json", c.now().UTC().Format("20060102-150405"))
			if _, err := c.archive.Put(ctx, key, data); err != nil {
				logger.Warnf("admin: pre-reset snapshot %s failed: %v", key, err)
			}
		}
	}
	return c.mutate(ctx, actor, func(cur *content.Document) error {
		*cur = *c.store.Defaults()
		return nil
	})
}
