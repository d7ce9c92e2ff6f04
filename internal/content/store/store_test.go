package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/repository"
	"github.com/salonmirai/sitesync/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{ repository.Cache }

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("quota exceeded")
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newLocalStore(t *testing.T) (*Store, *repository.MemoryCache) {
	t.Helper()
	cache := repository.NewMemoryCache()
	return New(cache, nil, Options{}), cache
}

func newRemoteStore(t *testing.T) (*Store, *repository.MemoryCache, *repository.MemoryRemote) {
	t.Helper()
	cache := repository.NewMemoryCache()
	remote := repository.NewMemoryRemote()
	gw := gateway.New(remote, gateway.Options{})
	s := New(cache, gw, Options{})
	require.True(t, gw.Connect(context.Background()))
	return s, cache, remote
}

func TestLoad_DefaultsWhenNothingPersisted(t *testing.T) {
	s, _ := newLocalStore(t)
	doc, src := s.Load(context.Background())
	require.Equal(t, SourceDefaults, src)
	require.Equal(t, content.Defaults(), doc)
}

func TestSaveThenLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocalStore(t)

	doc := content.Defaults()
	doc.Campaigns = append(doc.Campaigns, content.Campaign{ID: 4, Title: "冬のトリートメント", Active: true, OriginalPrice: content.IntPtr(6000)})
	p, err := s.Save(ctx, doc, "salon_admin")
	require.NoError(t, err)
	require.Equal(t, SaveResult{Success: true, Source: SourceLocal}, p.Local())
	res := p.Wait(ctx)
	require.True(t, res.Success)
	require.Equal(t, SourceLocal, res.Source)
	require.Empty(t, res.Warning, "no remote configured is not a warning")

	loaded, src := s.Load(ctx)
	require.Equal(t, SourceLocal, src)
	require.Equal(t, doc, loaded)
	require.Equal(t, "salon_admin", loaded.Settings.LastUpdatedBy)
}

func TestLoad_CorruptLocalFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	s, cache := newLocalStore(t)
	require.NoError(t, cache.Set(ctx, DocumentKey, []byte(`{"campaigns":[],"news":[]}`), 0))

	_, src := s.Load(ctx)
	require.Equal(t, SourceDefaults, src)
}

func TestLoad_RemoteIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	s, cache, remote := newRemoteStore(t)

	local := content.Defaults()
	local.Settings.SiteName = "ローカル"
	raw, err := content.Encode(local)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, DocumentKey, raw, 0))

	shared := content.Defaults()
	shared.Settings.SiteName = "リモート"
	_, err = remote.Put(shared)
	require.NoError(t, err)

	doc, src := s.Load(ctx)
	require.Equal(t, SourceRemote, src)
	require.Equal(t, "リモート", doc.Settings.SiteName)

	// written through to the local tier
	cached, err := s.ReadLocal(ctx)
	require.NoError(t, err)
	require.Equal(t, "リモート", cached.Settings.SiteName)
}

func TestLoad_UnreadableRemoteFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	s, cache, remote := newRemoteStore(t)

	local := content.Defaults()
	local.Settings.SiteName = "ローカル"
	raw, err := content.Encode(local)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, DocumentKey, raw, 0))
	remote.PutRaw([]byte(`{"campaigns":[],"settings":{"siteName":"壊れた"}}`))

	doc, src := s.Load(ctx)
	require.Equal(t, SourceLocal, src)
	require.Equal(t, "ローカル", doc.Settings.SiteName)
	require.True(t, s.Gateway().Online())

	// the damaged record did not reach the local tier
	cached, err := s.ReadLocal(ctx)
	require.NoError(t, err)
	require.Equal(t, "ローカル", cached.Settings.SiteName)
}

func TestReconnect_OfflineStartPushesLocalEdits(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewMemoryCache()
	remote := repository.NewMemoryRemote()
	seed := content.Defaults()
	seed.Settings.SiteName = "リモート原本"
	_, err := remote.Put(seed)
	require.NoError(t, err)

	remote.SetReachable(false)
	gw := gateway.New(remote, gateway.Options{})
	s := New(cache, gw, Options{})
	require.False(t, gw.Connect(ctx))
	_, src := s.Load(ctx)
	require.Equal(t, SourceDefaults, src)

	edit := content.Defaults()
	edit.Settings.SiteName = "オフライン編集"
	p, err := s.Save(ctx, edit, "salon_admin")
	require.NoError(t, err)
	res := p.Wait(ctx)
	require.Equal(t, SourceLocal, res.Source)
	require.Equal(t, "remote unavailable; saved locally", res.Warning)

	remote.SetReachable(true)
	gw.SetOnline(ctx, true)

	snap, err := remote.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "オフライン編集", snap.Doc.Settings.SiteName)
	cached, err := s.ReadLocal(ctx)
	require.NoError(t, err)
	require.Equal(t, "オフライン編集", cached.Settings.SiteName)
}

func TestSave_PushesToRemoteAndAudits(t *testing.T) {
	ctx := context.Background()
	s, _, remote := newRemoteStore(t)

	doc := content.Defaults()
	p, err := s.Save(ctx, doc, "demo_user")
	require.NoError(t, err)
	res := p.Wait(ctx)
	require.Equal(t, SaveResult{Success: true, Source: SourceRemote}, res)

	snap, err := remote.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, doc, snap.Doc)

	audit := remote.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, "data_update", audit[0].Action)
	assert.Equal(t, "demo_user", audit[0].User)
	assert.True(t, audit[0].Success)
	assert.NotEmpty(t, audit[0].ID)
}

func TestSave_RemoteDownStaysLocal(t *testing.T) {
	ctx := context.Background()
	s, _, remote := newRemoteStore(t)
	remote.SetReachable(false)

	p, err := s.Save(ctx, content.Defaults(), "salon_admin")
	require.NoError(t, err)
	res := p.Wait(ctx)
	require.True(t, res.Success)
	require.Equal(t, SourceLocal, res.Source)
	require.NotEmpty(t, res.Warning)
	require.False(t, s.Gateway().Online())

	// the following save does not even try the remote
	p, err = s.Save(ctx, content.Defaults(), "salon_admin")
	require.NoError(t, err)
	require.Equal(t, "remote unavailable; saved locally", p.Wait(ctx).Warning)
}

func TestSave_ConflictKeepsRemoteCopy(t *testing.T) {
	ctx := context.Background()
	s, _, remote := newRemoteStore(t)

	var mu sync.Mutex
	var remoteDocs []*content.Document
	s.Subscribe(func(doc *content.Document, origin Source) {
		if origin == SourceRemote {
			mu.Lock()
			remoteDocs = append(remoteDocs, doc)
			mu.Unlock()
		}
	})

	p, err := s.Save(ctx, content.Defaults(), "salon_admin")
	require.NoError(t, err)
	require.Equal(t, SourceRemote, p.Wait(ctx).Source)

	theirs := content.Defaults()
	theirs.Settings.SiteName = "別の管理者"
	_, err = remote.Put(theirs)
	require.NoError(t, err)

	mine := content.Defaults()
	mine.Settings.SiteName = "自分"
	p, err = s.Save(ctx, mine, "salon_admin")
	require.NoError(t, err)
	res := p.Wait(ctx)
	require.True(t, res.Conflict)
	require.Equal(t, SourceLocal, res.Source)

	mu.Lock()
	require.Len(t, remoteDocs, 1)
	require.Equal(t, "別の管理者", remoteDocs[0].Settings.SiteName)
	mu.Unlock()

	local, err := s.ReadLocal(ctx)
	require.NoError(t, err)
	require.Equal(t, "別の管理者", local.Settings.SiteName)
}

func TestSave_LocalFailureIsStorageError(t *testing.T) {
	s := New(failingCache{repository.NewMemoryCache()}, nil, Options{})
	_, err := s.Save(context.Background(), content.Defaults(), "")
	var se *content.StorageError
	require.ErrorAs(t, err, &se)
}

func TestSave_RejectsInvalidDocument(t *testing.T) {
	s, _ := newLocalStore(t)
	doc := content.Defaults()
	doc.Staff[1].ID = doc.Staff[0].ID
	_, err := s.Save(context.Background(), doc, "")
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = s.Save(context.Background(), nil, "")
	require.ErrorAs(t, err, &ve)
}

func TestSave_LastUpdatedStrictlyIncreases(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2024, 9, 17, 9, 0, 0, 0, time.UTC)
	s := New(repository.NewMemoryCache(), nil, Options{Now: fixedClock(frozen)})

	doc := content.Defaults()
	var prev time.Time
	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, doc, "")
		require.NoError(t, err)
		ts, err := content.ParseTimestamp(doc.Settings.LastUpdated)
		require.NoError(t, err)
		if i > 0 {
			require.True(t, ts.After(prev), "save %d: %s not after %s", i, ts, prev)
		}
		prev = ts
	}

	// a document stamped in the future still moves forward
	doc.Settings.LastUpdated = "2030-01-01T00:00:00.000Z"
	_, err := s.Save(ctx, doc, "")
	require.NoError(t, err)
	require.Equal(t, "2030-01-01T00:00:00.001Z", doc.Settings.LastUpdated)
}

func TestSubscribe_ReceivesCopiesAndUnsubscribes(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocalStore(t)

	var got []*content.Document
	stop := s.Subscribe(func(doc *content.Document, origin Source) {
		require.Equal(t, SourceLocal, origin)
		got = append(got, doc)
	})

	doc := content.Defaults()
	_, err := s.Save(ctx, doc, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].Settings.SiteName = "mutated"
	require.NotEqual(t, "mutated", doc.Settings.SiteName)

	stop()
	_, err = s.Save(ctx, doc, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocalStore(t)

	doc := content.Defaults()
	doc.News = nil
	_, err := s.Save(ctx, doc, "")
	require.NoError(t, err)

	reset, p, err := s.Reset(ctx, "salon_admin")
	require.NoError(t, err)
	require.True(t, p.Wait(ctx).Success)
	require.Len(t, reset.News, 3)

	loaded, _ := s.Load(ctx)
	require.Len(t, loaded.News, 3)
}

func TestPending_WaitHonoursContext(t *testing.T) {
	p := newPending(SaveResult{Success: true, Source: SourceLocal})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, p.Local(), p.Wait(ctx))
}
