package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/engine"
	"github.com/salonmirai/sitesync/internal/content/repository"
	"github.com/salonmirai/sitesync/internal/content/store"
	"github.com/salonmirai/sitesync/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memArchive struct {
	mu    sync.Mutex
	items map[string][]byte
	fail  bool
}

func newMemArchive() *memArchive { return &memArchive{items: map[string][]byte{}} }

func (a *memArchive) Put(_ context.Context, key string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return "", errors.New("bucket offline")
	}
	a.items[key] = append([]byte(nil), data...)
	return "https://archive.local/" + key, nil
}

func (a *memArchive) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.items[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func (a *memArchive) keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.items))
	for k := range a.items {
		out = append(out, k)
	}
	return out
}

var day = time.Date(2024, 9, 17, 10, 0, 0, 0, time.UTC)

func newLocalController(t *testing.T, archive Archive) (*Controller, *store.Store) {
	t.Helper()
	st := store.New(repository.NewMemoryCache(), nil, store.Options{})
	c := New(st, engine.New(), Options{Archive: archive, Now: func() time.Time { return day }})
	require.Equal(t, store.SourceDefaults, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c, st
}

func TestController_CreatePersistsAndUpdatesState(t *testing.T) {
	ctx := context.Background()
	c, st := newLocalController(t, nil)

	e, res, err := c.Create(ctx, "salon_admin", content.KindNews, engine.Fields{"title": "臨時休業", "content": "9/30は休業します"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, store.SourceLocal, res.Source)
	news := e.(content.NewsItem)
	assert.Equal(t, 4, news.ID)

	doc := c.Document()
	require.Len(t, doc.News, 4)
	assert.Equal(t, "salon_admin", doc.Settings.LastUpdatedBy)

	persisted, err := st.ReadLocal(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, persisted)
	assert.Equal(t, 4, c.Stats().News)
}

func TestController_FailedEditLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	c, _ := newLocalController(t, nil)
	before := c.Document()

	_, _, err := c.Update(ctx, "a", content.KindCampaign, 99, engine.Fields{"title": "x"})
	var nf *content.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, _, err = c.Create(ctx, "a", content.KindService, engine.Fields{"name": "x", "price": "-1"})
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = c.Delete(ctx, "a", content.KindStaff, 1)
	require.ErrorIs(t, err, content.ErrUnsupported)

	assert.Equal(t, before, c.Document())
}

func TestController_ImportRejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	c, st := newLocalController(t, nil)
	_, _, err := c.ToggleActive(ctx, "a", 1)
	require.NoError(t, err)
	before := c.Document()
	local, err := st.ReadLocal(ctx)
	require.NoError(t, err)

	for _, raw := range []string{
		`not json`,
		`{"campaigns":[],"news":[],"staff":[],"services":[]}`,
		`{"campaigns":{},"news":[],"staff":[],"services":[],"settings":{}}`,
		`{"campaigns":[{"id":1},{"id":1}],"news":[],"staff":[],"services":[],"settings":{}}`,
	} {
		_, err := c.Import(ctx, "a", []byte(raw))
		var ve *content.ValidationError
		assert.ErrorAs(t, err, &ve, raw)
	}

	assert.Equal(t, before, c.Document())
	after, err := st.ReadLocal(ctx)
	require.NoError(t, err)
	assert.Equal(t, local, after)
}

func TestController_ImportReplacesDocument(t *testing.T) {
	ctx := context.Background()
	c, _ := newLocalController(t, nil)
	raw := `{"campaigns":[],"news":[{"id":7,"title":"hello","content":"","publishedAt":"2024-01-01T00:00:00.000Z","featured":false}],
		"staff":[{"id":1,"name":"A","experience":"12","reviews":null}],"services":[],
		"settings":{"siteName":"Imported"}}`
	res, err := c.Import(ctx, "a", []byte(raw))
	require.NoError(t, err)
	assert.True(t, res.Success)

	doc := c.Document()
	assert.Equal(t, "Imported", doc.Settings.SiteName)
	assert.Empty(t, doc.Campaigns)
	assert.Equal(t, content.Years(12), doc.Staff[0].Experience)
	assert.Equal(t, []string{}, doc.Staff[0].Reviews)
	assert.Equal(t, 1, doc.SchemaVersion)

	e, _, err := c.Create(ctx, "a", content.KindNews, engine.Fields{"title": "next"})
	require.NoError(t, err)
	assert.Equal(t, 8, e.EntityID())
}

func TestController_ExportAndRestoreFromArchive(t *testing.T) {
	ctx := context.Background()
	archive := newMemArchive()
	c, _ := newLocalController(t, archive)

	_, _, err := c.UpdateSettings(ctx, "a", engine.Fields{"siteName": "サロン未来 本店"})
	require.NoError(t, err)

	exp, err := c.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "salon-data-backup-2024-09-17.json", exp.Filename)
	assert.Equal(t, "exports/salon-data-backup-2024-09-17.json", exp.ArchiveKey)
	assert.Equal(t, "https://archive.local/exports/salon-data-backup-2024-09-17.json", exp.ArchiveURL)

	decoded, err := content.Decode(exp.Data)
	require.NoError(t, err)
	assert.Equal(t, c.Document(), decoded)

	_, err = c.Reset(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, content.Defaults().Settings.SiteName, c.Document().Settings.SiteName)
	assert.Len(t, archive.keys(), 2, "export plus pre-reset snapshot")

	_, err = c.ImportFromArchive(ctx, "a", exp.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, "サロン未来 本店", c.Document().Settings.SiteName)

	_, err = c.ImportFromArchive(ctx, "a", "exports/missing.json")
	var se *content.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestController_ExportWithoutArchive(t *testing.T) {
	c, _ := newLocalController(t, nil)
	exp, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, exp.ArchiveURL)
	_, err = c.ImportFromArchive(context.Background(), "a", "k")
	assert.ErrorIs(t, err, content.ErrUnsupported)
}

func TestController_ArchiveFailureDoesNotFailExport(t *testing.T) {
	archive := newMemArchive()
	archive.fail = true
	c, _ := newLocalController(t, archive)
	exp, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, exp.Data)
	assert.Empty(t, exp.ArchiveKey)
}

func TestController_SetAllActiveAndStats(t *testing.T) {
	ctx := context.Background()
	c, _ := newLocalController(t, nil)
	n, _, err := c.SetAllActive(ctx, "a", false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, c.Stats().ActiveCampaigns)

	n, _, err = c.SetAllActive(ctx, "a", false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	cp, _, err := c.ToggleActive(ctx, "a", 2)
	require.NoError(t, err)
	assert.True(t, cp.Active)
	assert.Equal(t, 1, c.Stats().ActiveCampaigns)
	assert.Equal(t, 3, c.Stats().Campaigns)
}

func TestController_AddReview(t *testing.T) {
	ctx := context.Background()
	c, _ := newLocalController(t, nil)
	s, _, err := c.AddReview(ctx, "a", 1, "丁寧なカウンセリングでした")
	require.NoError(t, err)
	assert.Contains(t, s.Reviews, "丁寧なカウンセリングでした")
	assert.Contains(t, c.Document().Staff[0].Reviews, "丁寧なカウンセリングでした")
}

func TestController_RemoteSaveAndConflict(t *testing.T) {
	ctx := context.Background()
	remote := repository.NewMemoryRemote()
	gw := gateway.New(remote, gateway.Options{})
	require.True(t, gw.Connect(ctx))
	st := store.New(repository.NewMemoryCache(), gw, store.Options{})
	c := New(st, nil, Options{RemoteWait: 2 * time.Second})
	c.Start(ctx)
	defer c.Close()

	_, res, err := c.Create(ctx, "a", content.KindCampaign, engine.Fields{"title": "new", "active": "on"})
	require.NoError(t, err)
	assert.Equal(t, store.SourceRemote, res.Source)
	assert.EqualValues(t, 1, remote.Version())

	// another editor writes the remote directly
	theirs := content.Defaults()
	theirs.Settings.SiteName = "Their Salon"
	_, err = remote.Put(theirs)
	require.NoError(t, err)

	_, res, err = c.UpdateSettings(ctx, "a", engine.Fields{"siteName": "Our Salon"})
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, store.SourceLocal, res.Source)
	assert.Equal(t, "Their Salon", c.Document().Settings.SiteName)
	assert.Equal(t, store.SourceRemote, c.Source())
	assert.True(t, c.Status().Online)
}

func TestController_OfflineSaveWarns(t *testing.T) {
	ctx := context.Background()
	remote := repository.NewMemoryRemote()
	remote.SetReachable(false)
	gw := gateway.New(remote, gateway.Options{})
	require.False(t, gw.Connect(ctx))
	st := store.New(repository.NewMemoryCache(), gw, store.Options{})
	c := New(st, nil, Options{})
	c.Start(ctx)
	defer c.Close()

	_, res, err := c.Create(ctx, "a", content.KindService, engine.Fields{"name": "ヘッドスパ", "price": "4,500"})
	require.NoError(t, err)
	assert.Equal(t, store.SourceLocal, res.Source)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 4500, c.Document().Services[len(c.Document().Services)-1].Price)
}
